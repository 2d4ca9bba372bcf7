package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	"marketpulse/internal/domain"
	"marketpulse/internal/risk"
)

var validate = validator.New()

// Validate checks field-level constraints and the cross-field invariants the
// tags cannot express. It returns a *domain.ConfigurationError (or a
// validator error) on the first problem found.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	// Timeframes must be known intervals, ordered finest to coarsest.
	var prev time.Duration
	for _, tf := range c.Engine.Timeframes {
		d := domain.Timeframe(tf).Duration()
		if d == 0 {
			return &domain.ConfigurationError{Field: "engine.timeframes", Reason: "unknown timeframe " + tf}
		}
		if d <= prev {
			return &domain.ConfigurationError{Field: "engine.timeframes", Reason: "timeframes must be ordered finest to coarsest"}
		}
		prev = d
	}

	found := false
	for _, tf := range c.Engine.Timeframes {
		if tf == c.Engine.RegimeTimeframe {
			found = true
			break
		}
	}
	if !found {
		return &domain.ConfigurationError{Field: "engine.regime_timeframe", Reason: "must be one of engine.timeframes"}
	}

	ind := c.Engine.Indicators
	if ind.FastMA >= ind.SlowMA {
		return &domain.ConfigurationError{Field: "engine.indicators", Reason: "fast_ma must be shorter than slow_ma"}
	}
	if ind.MACDFast >= ind.MACDSlow {
		return &domain.ConfigurationError{Field: "engine.indicators", Reason: "macd_fast must be shorter than macd_slow"}
	}
	if c.Engine.Risk.RSIOversold >= c.Engine.Risk.RSIOverbought {
		return &domain.ConfigurationError{Field: "engine.risk", Reason: "rsi_oversold must be below rsi_overbought"}
	}

	// Building the scorer checks the weights: known names, no negative
	// weight, sum of 1.
	if _, err := risk.NewScorer(c.Engine.Risk.Weights); err != nil {
		return err
	}

	for state, p := range c.Engine.RegimeParams {
		switch domain.RegimeState(state) {
		case domain.RegimeBullish, domain.RegimeBearish, domain.RegimeRanging:
		default:
			return &domain.ConfigurationError{Field: "engine.regime_params", Reason: "unknown regime state " + state}
		}
		if p.FastMA != 0 && p.SlowMA != 0 && p.FastMA >= p.SlowMA {
			return &domain.ConfigurationError{Field: "engine.regime_params." + state, Reason: "fast_ma must be shorter than slow_ma"}
		}
		if p.StopATR < 0 || p.TakeProfitATR < 0 {
			return &domain.ConfigurationError{Field: "engine.regime_params." + state, Reason: "negative ATR multiplier"}
		}
	}

	if _, err := time.ParseDuration(c.Live.PollInterval); err != nil {
		return &domain.ConfigurationError{Field: "live.poll_interval", Reason: "not a valid duration"}
	}
	return nil
}

// PollInterval returns the parsed live polling interval. Validate has
// already checked that it parses.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Live.PollInterval)
	return d
}
