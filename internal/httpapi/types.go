// Package httpapi exposes the live loop's signal and trade history as a
// small JSON API.
package httpapi

import (
	"time"

	"marketpulse/internal/domain"
)

// SignalJSON is the JSON representation of one emitted signal.
type SignalJSON struct {
	Symbol     string          `json:"symbol"`
	Direction  string          `json:"direction"`
	AsOf       time.Time       `json:"asOf"`
	Confidence float64         `json:"confidence"`
	RiskScore  float64         `json:"riskScore"`
	Votes      map[string]bool `json:"votes,omitempty"`
}

// TradeJSON is the JSON representation of one closed trade.
type TradeJSON struct {
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	EntryTime  time.Time `json:"entryTime"`
	ExitTime   time.Time `json:"exitTime"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnlPct"`
	ExitReason string    `json:"exitReason"`
}

// StatusJSON reports the process status.
type StatusJSON struct {
	Symbols    []string `json:"symbols"`
	Timeframes []string `json:"timeframes"`
	StartedAt  string   `json:"startedAt"`
}

func signalJSON(s domain.Signal) SignalJSON {
	out := SignalJSON{
		Symbol:     s.Symbol,
		Direction:  string(s.Direction),
		AsOf:       s.AsOf,
		Confidence: s.Confidence,
		RiskScore:  s.RiskScore,
	}
	if len(s.TimeframeVotes) > 0 {
		out.Votes = make(map[string]bool, len(s.TimeframeVotes))
		for tf, v := range s.TimeframeVotes {
			out.Votes[string(tf)] = v
		}
	}
	return out
}

func tradeJSON(t domain.ClosedTrade) TradeJSON {
	return TradeJSON{
		Symbol:     t.Symbol,
		Direction:  string(t.Direction),
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Quantity:   t.Quantity,
		PnL:        t.PnL,
		PnLPct:     t.PnLPct,
		ExitReason: string(t.ExitReason),
	}
}
