package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// trueRange returns the true range of curr given the previous close. With no
// previous bar the true range is simply high minus low.
func trueRange(curr domain.Bar, prevClose float64, hasPrev bool) float64 {
	tr := curr.High - curr.Low
	if !hasPrev {
		return tr
	}
	if hc := math.Abs(curr.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(curr.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// ATR returns the Wilder-smoothed average true range as of the last bar.
// The first ATR value is the plain average of the first period true ranges;
// each subsequent value is (prev*(period-1) + tr) / period. Returns NaN when
// fewer than period+1 bars exist.
func ATR(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return math.NaN()
	}

	// Wilder seed: mean of the first period true ranges (bar 1..period, so
	// every TR has a previous close).
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(bars[i], bars[i-1].Close, true)
	}
	atr := sum / float64(period)

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1].Close, true)
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}
