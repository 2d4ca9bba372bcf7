package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// ADX returns Wilder's average directional index as of the last bar.
// Directional movement and true range are Wilder-smoothed over period bars,
// then the DX series is Wilder-smoothed over another period bars, so the
// indicator needs at least 2*period bars and returns NaN below that.
func ADX(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < 2*period {
		return math.NaN()
	}

	// Raw +DM, -DM, TR per bar (starting at bar 1).
	n := len(bars) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = trueRange(bars[i], bars[i-1].Close, true)
	}

	// Wilder smoothing: seed with the sum of the first period values, then
	// smooth = prev - prev/period + curr.
	smPlus := 0.0
	smMinus := 0.0
	smTR := 0.0
	for i := 0; i < period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	dx := make([]float64, 0, n-period+1)
	appendDX := func() {
		if smTR == 0 {
			dx = append(dx, 0)
			return
		}
		plusDI := 100 * smPlus / smTR
		minusDI := 100 * smMinus / smTR
		if plusDI+minusDI == 0 {
			dx = append(dx, 0)
			return
		}
		dx = append(dx, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}
	appendDX()

	for i := period; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]
		appendDX()
	}

	if len(dx) < period {
		return math.NaN()
	}

	// ADX: Wilder average of the DX series.
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += dx[i]
	}
	adx := sum / float64(period)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}
	return adx
}
