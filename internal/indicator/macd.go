package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// MACDHistogram returns the MACD histogram as of the last bar: the MACD line
// (EMA(fast) − EMA(slow) of closes) minus its EMA(signal) signal line.
// Returns NaN until slow+signal-1 bars exist.
func MACDHistogram(bars []domain.Bar, fast, slow, signal int) float64 {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return math.NaN()
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	if slowEMA == nil {
		return math.NaN()
	}

	// MACD line is defined from the slow seed index onward.
	macd := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macd = append(macd, fastEMA[i]-slowEMA[i])
	}

	signalLine := emaSeries(macd, signal)
	if signalLine == nil {
		return math.NaN()
	}
	return macd[len(macd)-1] - signalLine[len(signalLine)-1]
}
