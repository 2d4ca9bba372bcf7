// Package indicator computes technical indicators from bar slices. All
// functions are pure and causal: the result depends only on the bars passed
// in, with the last bar treated as the bar being evaluated. Until the
// minimum warm-up length is reached they return NaN rather than an error;
// callers must treat NaN as "no value", never as a zero.
package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// SMA returns the simple moving average of the closes of the last period
// bars, or NaN when fewer than period bars exist.
func SMA(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the closes as of the last
// bar. The EMA is seeded with the SMA of the first period bars, so it needs
// at least period bars.
func EMA(bars []domain.Bar, period int) float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema := emaSeries(closes, period)
	if len(ema) == 0 {
		return math.NaN()
	}
	return ema[len(ema)-1]
}

// emaSeries computes the EMA of values for every index. Entries before the
// seed index (period-1) are NaN. Returns nil when there is not enough data.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
		if i < period-1 {
			out[i] = math.NaN()
		}
	}
	out[period-1] = seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
