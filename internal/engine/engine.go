// Package engine assembles the per-regime decision components shared by the
// backtester and the live loop: indicator parameters, the signal generator,
// and the position sizer, each resolved for one regime state.
package engine

import (
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/indicator"
	"marketpulse/internal/signal"
	"marketpulse/internal/sizing"
)

// DecisionSet bundles the decision components effective under one regime
// state. Sets are immutable after construction and safe for concurrent use.
type DecisionSet struct {
	Params    indicator.Params
	Generator *signal.Generator
	Sizer     *sizing.Sizer
}

// Timeframes returns the configured timeframes, finest first.
func Timeframes(cfg *config.Config) []domain.Timeframe {
	tfs := make([]domain.Timeframe, len(cfg.Engine.Timeframes))
	for i, tf := range cfg.Engine.Timeframes {
		tfs[i] = domain.Timeframe(tf)
	}
	return tfs
}

// BuildSets resolves a DecisionSet for every regime state: the base
// configuration overridden by any regime_params entry for that state.
func BuildSets(cfg *config.Config) map[domain.RegimeState]DecisionSet {
	sets := make(map[domain.RegimeState]DecisionSet, 3)
	for _, state := range []domain.RegimeState{domain.RegimeBullish, domain.RegimeBearish, domain.RegimeRanging} {
		sets[state] = buildSet(cfg, state)
	}
	return sets
}

func buildSet(cfg *config.Config, state domain.RegimeState) DecisionSet {
	ind := cfg.Engine.Indicators
	params := indicator.Params{
		FastMAPeriod:  ind.FastMA,
		SlowMAPeriod:  ind.SlowMA,
		LongMAPeriod:  ind.LongMA,
		ADXPeriod:     ind.ADX,
		MACDFast:      ind.MACDFast,
		MACDSlow:      ind.MACDSlow,
		MACDSignal:    ind.MACDSignal,
		ATRPeriod:     ind.ATR,
		VolumeWindow:  ind.VolumeWindow,
		RSIPeriod:     ind.RSI,
		SwingLookback: ind.SwingLookback,
	}

	rc := cfg.Engine.Risk
	sz := cfg.Engine.Sizing
	minVolZ := rc.MinVolumeZ
	rsiHi := rc.RSIOverbought
	rsiLo := rc.RSIOversold
	stopATR := sz.StopATR
	tpATR := sz.TakeProfitATR

	if over, ok := cfg.Engine.RegimeParams[string(state)]; ok {
		if over.FastMA != 0 {
			params.FastMAPeriod = over.FastMA
		}
		if over.SlowMA != 0 {
			params.SlowMAPeriod = over.SlowMA
		}
		if over.MinVolumeZ != 0 {
			minVolZ = over.MinVolumeZ
		}
		if over.RSIOverbought != 0 {
			rsiHi = over.RSIOverbought
		}
		if over.RSIOversold != 0 {
			rsiLo = over.RSIOversold
		}
		if over.StopATR != 0 {
			stopATR = over.StopATR
		}
		if over.TakeProfitATR != 0 {
			tpATR = over.TakeProfitATR
		}
	}

	gen := signal.NewGenerator(signal.Config{
		Timeframes:    Timeframes(cfg),
		MinVolumeZ:    minVolZ,
		MaxRiskScore:  rc.MaxScore,
		RSIOverbought: rsiHi,
		RSIOversold:   rsiLo,
	})
	sizer := sizing.NewSizer(sizing.Config{
		RiskPerTrade:        sz.RiskPerTrade,
		MaxPositionFraction: sz.MaxPositionFraction,
		StopATR:             stopATR,
		TakeProfitATR:       tpATR,
		TrailATR:            sz.TrailATR,
		Increment:           sz.Increment,
		MinQuantity:         sz.MinQuantity,
	})
	return DecisionSet{Params: params, Generator: gen, Sizer: sizer}
}
