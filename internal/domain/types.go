// Package domain defines the core value types shared across the engine:
// bars, timeframes, signals, regimes, risk scores, positions, and trades.
package domain

import "time"

// Timeframe identifies a bar interval (e.g. "5m", "1h", "4h", "1d").
type Timeframe string

// Duration returns the bar interval as a time.Duration. Unknown timeframes
// return 0.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

// Bar is a single OHLCV bar for one symbol on one timeframe. OpenTime is the
// UTC start of the bar interval.
type Bar struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Direction is the trade direction carried by a Signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionExit  Direction = "exit"
	DirectionNone  Direction = "none"
)

// Signal is the output of one decision cycle for one symbol. It is immutable
// once produced and consumed exactly once by the backtest engine or the live
// loop.
type Signal struct {
	Symbol     string
	Direction  Direction
	AsOf       time.Time
	Confidence float64 // [0, 1]
	RiskScore  float64 // [0, 100]

	// TimeframeVotes records the per-timeframe trend vote that produced the
	// signal. A timeframe absent from the map abstained (insufficient data).
	TimeframeVotes map[Timeframe]bool
}

// RegimeState classifies the market state for a symbol.
type RegimeState string

const (
	RegimeBullish RegimeState = "bullish"
	RegimeBearish RegimeState = "bearish"
	RegimeRanging RegimeState = "ranging"
)

// Regime is the current market state for a symbol together with when it
// began and how confident the detector is. A regime is never mutated;
// transitions produce a new value.
type Regime struct {
	State      RegimeState
	Since      time.Time
	Confidence float64 // [0, 1]
}

// RiskScore is the composite pre-trade risk assessment for a symbol at one
// bar close. Lower is safer. Components maps metric name to its weighted
// contribution to the composite.
type RiskScore struct {
	Symbol     string
	AsOf       time.Time
	Score      float64 // [0, 100]
	Components map[string]float64
}

// IndicatorSnapshot holds all indicator values for one (symbol, timeframe)
// as of one bar close. Values that could not be computed due to insufficient
// warm-up data are NaN. Snapshots are immutable; new bars append new
// snapshots, closed bars are never recomputed.
type IndicatorSnapshot struct {
	Symbol    string
	Timeframe Timeframe
	AsOf      time.Time
	Values    map[string]float64
}

// Position is an open holding inside a portfolio. It is mutated only by
// fills (open, stop adjustment, close) and destroyed on close.
type Position struct {
	Symbol        string
	Direction     Direction
	EntryTime     time.Time
	EntryPrice    float64
	Quantity      float64
	StopPrice     float64
	TakeProfit    float64
	TrailDistance float64 // absolute price distance for the trailing stop
	BestPrice     float64 // best price seen since entry (high for long, low for short)
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSignalReversal ExitReason = "signal_reversal"
	ExitStopLoss       ExitReason = "stop_loss"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitTrailingStop   ExitReason = "trailing_stop"
	ExitTimeLimit      ExitReason = "time_exit"
)

// ClosedTrade is one completed round trip. The trade log is append-only and
// is the basis for all performance metrics.
type ClosedTrade struct {
	Symbol     string
	Direction  Direction
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	PnLPct     float64
	ExitReason ExitReason
}

// EquityPoint is one sample on the portfolio equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// PortfolioState is the simulated account: cash, open positions, and the
// equity curve. It has exactly one writer — the engine driving the
// simulation, or the live adapter for that account.
type PortfolioState struct {
	Cash        float64
	Positions   map[string]*Position
	EquityCurve []EquityPoint
}

// NewPortfolioState creates a portfolio holding only cash.
func NewPortfolioState(cash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Equity returns cash plus the mark-to-market value of all open positions at
// the supplied prices. Symbols with no price entry are marked at their entry
// price.
func (p *PortfolioState) Equity(marks map[string]float64) float64 {
	equity := p.Cash
	for sym, pos := range p.Positions {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.EntryPrice
		}
		switch pos.Direction {
		case DirectionLong:
			equity += pos.Quantity * mark
		case DirectionShort:
			equity += pos.Quantity * (2*pos.EntryPrice - mark)
		}
	}
	return equity
}
