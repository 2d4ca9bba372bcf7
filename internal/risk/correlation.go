package risk

import (
	"math"

	"marketpulse/internal/domain"
)

// returns computes close-to-close fractional returns over the last window+1
// bars. Returns nil with insufficient data.
func returns(bars []domain.Bar, window int) []float64 {
	if len(bars) < window+1 {
		return nil
	}
	recent := bars[len(bars)-window-1:]
	out := make([]float64, window)
	for i := 1; i < len(recent); i++ {
		prev := recent[i-1].Close
		if prev == 0 {
			return nil
		}
		out[i-1] = recent[i].Close/prev - 1
	}
	return out
}

// Correlation returns the Pearson correlation of close-to-close returns
// between two bar series over the last window returns. NaN when either
// series lacks data or has zero variance.
func Correlation(a, b []domain.Bar, window int) float64 {
	ra := returns(a, window)
	rb := returns(b, window)
	if ra == nil || rb == nil {
		return math.NaN()
	}

	meanA, meanB := 0.0, 0.0
	for i := 0; i < window; i++ {
		meanA += ra[i]
		meanB += rb[i]
	}
	meanA /= float64(window)
	meanB /= float64(window)

	var cov, varA, varB float64
	for i := 0; i < window; i++ {
		da := ra[i] - meanA
		db := rb[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}

// MaxCorrelation returns the highest return correlation between the
// candidate series and any of the open-position series. NaN when there are
// no open positions or no correlation could be computed.
func MaxCorrelation(candidate []domain.Bar, open map[string][]domain.Bar, window int) float64 {
	max := math.NaN()
	for _, bars := range open {
		c := Correlation(candidate, bars, window)
		if math.IsNaN(c) {
			continue
		}
		if math.IsNaN(max) || c > max {
			max = c
		}
	}
	return max
}
