// Package regime classifies the market state of a symbol as bullish,
// bearish, or ranging from trend-strength and directional-bias indicators.
package regime

import (
	"math"
	"time"

	"marketpulse/internal/domain"
	"marketpulse/internal/indicator"
)

// Detector is a per-symbol state machine over {bullish, bearish, ranging}.
// It starts in ranging and requires the same confirming condition on K
// consecutive higher-timeframe bar closes before switching state, so a
// single noisy bar never flips the regime.
type Detector struct {
	adxThreshold float64
	hysteresisK  int

	current   domain.Regime
	candidate domain.RegimeState
	streak    int
}

// NewDetector creates a Detector with the given ADX trend threshold and
// hysteresis bar count. K values below 1 are treated as 1.
func NewDetector(adxThreshold float64, hysteresisK int) *Detector {
	if hysteresisK < 1 {
		hysteresisK = 1
	}
	return &Detector{
		adxThreshold: adxThreshold,
		hysteresisK:  hysteresisK,
		current:      domain.Regime{State: domain.RegimeRanging},
	}
}

// Current returns the regime as of the last observation.
func (d *Detector) Current() domain.Regime { return d.current }

// Observe feeds one higher-timeframe snapshot into the state machine and
// returns the regime after the observation. The snapshot must contain ADX,
// close, and the long EMA; while any of them is NaN the detector holds its
// state and any pending transition streak is abandoned.
func (d *Detector) Observe(snap domain.IndicatorSnapshot) domain.Regime {
	adx := snap.Values[indicator.ValueADX]
	close := snap.Values[indicator.ValueClose]
	longMA := snap.Values[indicator.ValueLongMA]

	if math.IsNaN(adx) || math.IsNaN(close) || math.IsNaN(longMA) {
		d.candidate = ""
		d.streak = 0
		return d.current
	}

	observed := classify(adx, close, longMA, d.adxThreshold)
	if observed == d.current.State {
		// Confirming the current state refreshes confidence but resets any
		// pending transition.
		d.candidate = ""
		d.streak = 0
		d.current.Confidence = confidence(observed, adx, d.adxThreshold)
		return d.current
	}

	if observed == d.candidate {
		d.streak++
	} else {
		d.candidate = observed
		d.streak = 1
	}

	if d.streak >= d.hysteresisK {
		d.current = domain.Regime{
			State:      observed,
			Since:      snap.AsOf,
			Confidence: confidence(observed, adx, d.adxThreshold),
		}
		d.candidate = ""
		d.streak = 0
	}
	return d.current
}

// Reset returns the detector to its initial ranging state. Used between
// independent backtest runs.
func (d *Detector) Reset(at time.Time) {
	d.current = domain.Regime{State: domain.RegimeRanging, Since: at}
	d.candidate = ""
	d.streak = 0
}

// classify maps one bar's trend strength and directional bias to a state.
func classify(adx, close, longMA, threshold float64) domain.RegimeState {
	if adx > threshold {
		if close > longMA {
			return domain.RegimeBullish
		}
		if close < longMA {
			return domain.RegimeBearish
		}
	}
	return domain.RegimeRanging
}

// confidence maps ADX to [0, 1]. Trending states gain confidence as ADX
// rises past the threshold; ranging gains confidence as ADX falls below it.
func confidence(state domain.RegimeState, adx, threshold float64) float64 {
	var c float64
	if state == domain.RegimeRanging {
		if threshold > 0 {
			c = 1 - adx/threshold
		}
	} else {
		// Saturates at twice the threshold.
		if threshold > 0 {
			c = (adx - threshold) / threshold
		}
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
