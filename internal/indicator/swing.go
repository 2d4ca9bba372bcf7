package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// SwingHigh returns the highest high over the last lookback bars, or NaN
// when fewer than lookback bars exist.
func SwingHigh(bars []domain.Bar, lookback int) float64 {
	if lookback <= 0 || len(bars) < lookback {
		return math.NaN()
	}
	hi := math.Inf(-1)
	for _, b := range bars[len(bars)-lookback:] {
		if b.High > hi {
			hi = b.High
		}
	}
	return hi
}

// SwingLow returns the lowest low over the last lookback bars, or NaN when
// fewer than lookback bars exist.
func SwingLow(bars []domain.Bar, lookback int) float64 {
	if lookback <= 0 || len(bars) < lookback {
		return math.NaN()
	}
	lo := math.Inf(1)
	for _, b := range bars[len(bars)-lookback:] {
		if b.Low < lo {
			lo = b.Low
		}
	}
	return lo
}
