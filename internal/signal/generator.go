// Package signal implements the decision core: it folds per-timeframe
// indicator snapshots, the current regime, and the risk score into one
// trade signal per symbol per bar-close cycle.
package signal

import (
	"log/slog"
	"math"
	"time"

	"marketpulse/internal/domain"
	"marketpulse/internal/indicator"
)

// Config holds the generator's decision thresholds. Timeframes must be
// ordered finest first; the volume gate applies to the first entry.
type Config struct {
	Timeframes    []domain.Timeframe
	MinVolumeZ    float64
	MaxRiskScore  float64
	RSIOverbought float64
	RSIOversold   float64
}

// Inputs is everything the generator sees for one symbol in one cycle.
type Inputs struct {
	Symbol    string
	AsOf      time.Time
	Snapshots map[domain.Timeframe]domain.IndicatorSnapshot
	Regime    domain.Regime
	Risk      domain.RiskScore

	// OpenPosition is the symbol's current open position, nil when flat.
	OpenPosition *domain.Position
}

// Generator evaluates signals. It is stateless between cycles; all state
// lives in the inputs.
type Generator struct {
	cfg Config
	log *slog.Logger
}

// NewGenerator creates a Generator with the given thresholds.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, log: slog.Default().With("component", "signal")}
}

// vote is the tri-state outcome of one timeframe's trend check.
type vote int

const (
	voteAbstain vote = 0
	voteUp      vote = 1
	voteDown    vote = -1
)

// trendVote checks one timeframe: up when the fast MA is above the slow MA
// and the MACD histogram agrees in sign, down symmetrically. Any NaN input
// makes the timeframe abstain — insufficient data never confirms either
// direction. The RSI filter vetoes votes chasing a stretched move.
func (g *Generator) trendVote(snap domain.IndicatorSnapshot) vote {
	fast := snap.Values[indicator.ValueFastMA]
	slow := snap.Values[indicator.ValueSlowMA]
	hist := snap.Values[indicator.ValueMACDHist]
	rsi := snap.Values[indicator.ValueRSI]
	if math.IsNaN(fast) || math.IsNaN(slow) || math.IsNaN(hist) || math.IsNaN(rsi) {
		return voteAbstain
	}
	if fast > slow && hist > 0 && rsi < g.cfg.RSIOverbought {
		return voteUp
	}
	if fast < slow && hist < 0 && rsi > g.cfg.RSIOversold {
		return voteDown
	}
	return voteAbstain
}

// Evaluate runs one decision cycle and returns exactly one signal. It never
// returns an error: any internal failure yields a NONE signal — the engine
// fails closed, never open.
func (g *Generator) Evaluate(in Inputs) (sig domain.Signal) {
	sig = domain.Signal{
		Symbol:    in.Symbol,
		Direction: domain.DirectionNone,
		AsOf:      in.AsOf,
		RiskScore: in.Risk.Score,
	}
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("signal evaluation panicked, failing closed", "symbol", in.Symbol, "panic", r)
			sig = domain.Signal{Symbol: in.Symbol, Direction: domain.DirectionNone, AsOf: in.AsOf, RiskScore: in.Risk.Score}
		}
	}()

	votes := make(map[domain.Timeframe]bool)
	up, down, cast := 0, 0, 0
	for _, tf := range g.cfg.Timeframes {
		snap, ok := in.Snapshots[tf]
		if !ok {
			continue
		}
		switch g.trendVote(snap) {
		case voteUp:
			votes[tf] = true
			up++
			cast++
		case voteDown:
			votes[tf] = false
			down++
			cast++
		}
	}
	sig.TimeframeVotes = votes

	// Unanimity across all configured timeframes; an abstaining timeframe
	// blocks both directions.
	total := len(g.cfg.Timeframes)
	var candidate domain.Direction
	switch {
	case total > 0 && up == total:
		candidate = domain.DirectionLong
	case total > 0 && down == total:
		candidate = domain.DirectionShort
	default:
		candidate = domain.DirectionNone
	}

	// Volume confirmation on the fastest timeframe.
	if candidate != domain.DirectionNone && !g.volumeConfirmed(in) {
		candidate = domain.DirectionNone
	}

	// Signal reversal: a unanimously confirmed opposite trend closes the
	// existing position in this cycle. The regime and risk gates below only
	// suppress new entries, never exits.
	if pos := in.OpenPosition; pos != nil {
		if candidate != domain.DirectionNone && candidate != pos.Direction {
			sig.Direction = domain.DirectionExit
			sig.Confidence = g.confidence(candidate, up, down, cast, in.Risk.Score)
			return sig
		}
		// Mean-reversion exit while ranging: the finest timeframe turning
		// against the position is enough, no unanimity required.
		if in.Regime.State == domain.RegimeRanging && g.finestAgainst(in, pos.Direction) {
			sig.Direction = domain.DirectionExit
			sig.Confidence = in.Regime.Confidence
			return sig
		}
	}

	// Regime gate: no new trend entries in a ranging market.
	if in.Regime.State == domain.RegimeRanging {
		return sig
	}

	// Risk gate.
	if in.Risk.Score > g.cfg.MaxRiskScore {
		return sig
	}

	if candidate == domain.DirectionNone || in.OpenPosition != nil {
		return sig
	}

	sig.Direction = candidate
	sig.Confidence = g.confidence(candidate, up, down, cast, in.Risk.Score)
	return sig
}

// volumeConfirmed checks the fastest timeframe's volume z-score against the
// configured minimum. A NaN z-score never confirms.
func (g *Generator) volumeConfirmed(in Inputs) bool {
	if len(g.cfg.Timeframes) == 0 {
		return false
	}
	snap, ok := in.Snapshots[g.cfg.Timeframes[0]]
	if !ok {
		return false
	}
	z := snap.Values[indicator.ValueVolumeZ]
	return !math.IsNaN(z) && z > g.cfg.MinVolumeZ
}

// finestAgainst reports whether the finest timeframe's MA pair points
// against the given position direction.
func (g *Generator) finestAgainst(in Inputs, dir domain.Direction) bool {
	if len(g.cfg.Timeframes) == 0 {
		return false
	}
	snap, ok := in.Snapshots[g.cfg.Timeframes[0]]
	if !ok {
		return false
	}
	fast := snap.Values[indicator.ValueFastMA]
	slow := snap.Values[indicator.ValueSlowMA]
	if math.IsNaN(fast) || math.IsNaN(slow) {
		return false
	}
	switch dir {
	case domain.DirectionLong:
		return fast < slow
	case domain.DirectionShort:
		return fast > slow
	}
	return false
}

// confidence is the fraction of cast votes agreeing with the direction,
// scaled down by the risk score.
func (g *Generator) confidence(dir domain.Direction, up, down, cast int, riskScore float64) float64 {
	if cast == 0 {
		return 0
	}
	agree := up
	if dir == domain.DirectionShort {
		agree = down
	}
	c := float64(agree) / float64(cast) * (1 - riskScore/100)
	if c < 0 {
		c = 0
	}
	return c
}
