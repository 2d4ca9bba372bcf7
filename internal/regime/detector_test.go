package regime

import (
	"math"
	"testing"
	"time"

	"marketpulse/internal/domain"
	"marketpulse/internal/indicator"
)

func snap(adx, close, longMA float64, at time.Time) domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		Symbol:    "TEST",
		Timeframe: "1h",
		AsOf:      at,
		Values: map[string]float64{
			indicator.ValueADX:    adx,
			indicator.ValueClose:  close,
			indicator.ValueLongMA: longMA,
		},
	}
}

func TestDetectorStartsRanging(t *testing.T) {
	d := NewDetector(25, 2)
	if got := d.Current().State; got != domain.RegimeRanging {
		t.Errorf("initial state = %v, want ranging", got)
	}
}

func TestDetectorHysteresis(t *testing.T) {
	d := NewDetector(25, 3)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	// K-1 confirming observations must not flip the state.
	for i := 0; i < 2; i++ {
		got := d.Observe(snap(30, 110, 100, at.Add(time.Duration(i)*time.Hour)))
		if got.State != domain.RegimeRanging {
			t.Fatalf("after %d bullish bars state = %v, want ranging", i+1, got.State)
		}
	}

	// The Kth consecutive observation flips it.
	got := d.Observe(snap(30, 110, 100, at.Add(2*time.Hour)))
	if got.State != domain.RegimeBullish {
		t.Fatalf("after 3 bullish bars state = %v, want bullish", got.State)
	}
	if !got.Since.Equal(at.Add(2 * time.Hour)) {
		t.Errorf("Since = %v, want transition time", got.Since)
	}
}

func TestDetectorStreakResetByContradiction(t *testing.T) {
	d := NewDetector(25, 2)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	d.Observe(snap(30, 110, 100, at))                  // bullish 1
	d.Observe(snap(30, 90, 100, at.Add(time.Hour)))    // bearish resets the streak
	got := d.Observe(snap(30, 110, 100, at.Add(2*time.Hour))) // bullish 1 again
	if got.State != domain.RegimeRanging {
		t.Errorf("interrupted streak flipped the state to %v", got.State)
	}
	got = d.Observe(snap(30, 110, 100, at.Add(3 * time.Hour)))
	if got.State != domain.RegimeBullish {
		t.Errorf("rebuilt streak should flip to bullish, got %v", got.State)
	}
}

func TestDetectorHoldsOnNaN(t *testing.T) {
	d := NewDetector(25, 2)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	d.Observe(snap(30, 110, 100, at)) // bullish streak 1
	got := d.Observe(snap(math.NaN(), 110, 100, at.Add(time.Hour)))
	if got.State != domain.RegimeRanging {
		t.Fatalf("NaN observation changed state to %v", got.State)
	}
	// The NaN also abandoned the streak: one more bullish bar is not enough.
	got = d.Observe(snap(30, 110, 100, at.Add(2 * time.Hour)))
	if got.State != domain.RegimeRanging {
		t.Errorf("streak survived a NaN observation, state = %v", got.State)
	}
}

func TestDetectorBearishAndBack(t *testing.T) {
	d := NewDetector(25, 1)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if got := d.Observe(snap(40, 90, 100, at)); got.State != domain.RegimeBearish {
		t.Fatalf("state = %v, want bearish", got.State)
	}
	if got := d.Observe(snap(10, 90, 100, at.Add(time.Hour))); got.State != domain.RegimeRanging {
		t.Fatalf("weak ADX should classify ranging, got %v", got.State)
	}
}

func TestConfidenceBounds(t *testing.T) {
	d := NewDetector(25, 1)
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	got := d.Observe(snap(100, 110, 100, at))
	if got.Confidence != 1 {
		t.Errorf("saturated trend confidence = %v, want 1", got.Confidence)
	}
	d.Reset(at)
	got = d.Observe(snap(0, 100, 100, at))
	if got.State != domain.RegimeRanging || got.Confidence != 1 {
		t.Errorf("calm ranging = %v conf %v, want ranging conf 1", got.State, got.Confidence)
	}
}
