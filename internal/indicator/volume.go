package indicator

import (
	"math"

	"marketpulse/internal/domain"
)

// VolumeZScore returns how many standard deviations the latest bar's volume
// sits from the rolling mean over the last window bars (the current bar
// included). Returns NaN when fewer than window bars exist, and 0 when the
// rolling standard deviation is zero.
func VolumeZScore(bars []domain.Bar, window int) float64 {
	if window <= 1 || len(bars) < window {
		return math.NaN()
	}
	recent := bars[len(bars)-window:]

	mean := 0.0
	for _, b := range recent {
		mean += b.Volume
	}
	mean /= float64(window)

	variance := 0.0
	for _, b := range recent {
		d := b.Volume - mean
		variance += d * d
	}
	variance /= float64(window)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (recent[window-1].Volume - mean) / std
}
