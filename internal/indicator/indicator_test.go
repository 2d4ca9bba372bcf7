package indicator

import (
	"math"
	"testing"
	"time"

	"marketpulse/internal/domain"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

// mkBars builds a 5m series from closes; each bar spans close±1 with flat
// volume.
func mkBars(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timeframe: "5m",
			OpenTime:  t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	bars := mkBars(1, 2, 3, 4, 5)
	if got := SMA(bars, 3); got != 4 {
		t.Errorf("SMA(3) = %v, want 4", got)
	}
	if got := SMA(bars, 6); !math.IsNaN(got) {
		t.Errorf("SMA with insufficient data = %v, want NaN", got)
	}
}

func TestEMASeeding(t *testing.T) {
	// Seed is the SMA of the first 3 closes (2), then k=0.5 updates:
	// 2 -> 3 -> 4.
	bars := mkBars(1, 2, 3, 4, 5)
	if got := EMA(bars, 3); got != 4 {
		t.Errorf("EMA(3) = %v, want 4", got)
	}
	if got := EMA(mkBars(1, 2), 3); !math.IsNaN(got) {
		t.Errorf("EMA below seed length = %v, want NaN", got)
	}
	// Constant series: EMA sticks to the price.
	if got := EMA(mkBars(7, 7, 7, 7, 7, 7), 3); got != 7 {
		t.Errorf("EMA of constant series = %v, want 7", got)
	}
}

func TestMACDHistogramWarmup(t *testing.T) {
	// fast=2, slow=3, signal=2 needs slow+signal-1 = 4 bars.
	if got := MACDHistogram(mkBars(1, 2, 3), 2, 3, 2); !math.IsNaN(got) {
		t.Errorf("MACD with 3 bars = %v, want NaN", got)
	}
	if got := MACDHistogram(mkBars(1, 2, 3, 4), 2, 3, 2); math.IsNaN(got) {
		t.Error("MACD with 4 bars should have a value")
	}
	// Rising series: fast EMA above slow EMA, histogram positive.
	if got := MACDHistogram(mkBars(1, 2, 3, 4, 5, 6, 7, 8), 2, 3, 2); got <= 0 {
		t.Errorf("MACD hist of rising series = %v, want > 0", got)
	}
}

func TestATR(t *testing.T) {
	// Flat closes, range 2 per bar: every TR is 2.
	bars := mkBars(10, 10, 10, 10, 10)
	if got := ATR(bars, 3); got != 2 {
		t.Errorf("ATR = %v, want 2", got)
	}
	if got := ATR(mkBars(10, 10, 10), 3); !math.IsNaN(got) {
		t.Errorf("ATR below period+1 bars = %v, want NaN", got)
	}
}

func TestADXInsufficientData(t *testing.T) {
	closes := make([]float64, 27)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	if got := ADX(mkBars(closes...), 14); !math.IsNaN(got) {
		t.Errorf("ADX with 27 bars, period 14 = %v, want NaN", got)
	}
}

func TestADXTrendingValue(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(100 + 2*i)
	}
	got := ADX(mkBars(closes...), 14)
	if math.IsNaN(got) {
		t.Fatal("ADX with 40 bars should have a value")
	}
	if got <= 25 || got > 100 {
		t.Errorf("ADX of a steady uptrend = %v, want well above 25", got)
	}
}

func TestVolumeZScore(t *testing.T) {
	bars := mkBars(1, 1, 1, 1, 1)
	if got := VolumeZScore(bars, 4); got != 0 {
		t.Errorf("zero-variance volume z = %v, want 0", got)
	}

	bars[len(bars)-1].Volume = 5000
	if got := VolumeZScore(bars, 4); got <= 0 {
		t.Errorf("volume spike z = %v, want > 0", got)
	}

	if got := VolumeZScore(bars, 6); !math.IsNaN(got) {
		t.Errorf("volume z with insufficient data = %v, want NaN", got)
	}
}

func TestRSI(t *testing.T) {
	if got := RSI(mkBars(1, 2, 3, 4, 5), 3); got != 100 {
		t.Errorf("RSI of pure gains = %v, want 100", got)
	}
	if got := RSI(mkBars(5, 4, 3, 2, 1), 3); got != 0 {
		t.Errorf("RSI of pure losses = %v, want 0", got)
	}
	if got := RSI(mkBars(1, 2, 3), 3); !math.IsNaN(got) {
		t.Errorf("RSI below period+1 bars = %v, want NaN", got)
	}
}

func TestSwingLevels(t *testing.T) {
	bars := mkBars(10, 20, 15)
	if got := SwingHigh(bars, 3); got != 21 {
		t.Errorf("SwingHigh = %v, want 21", got)
	}
	if got := SwingLow(bars, 3); got != 9 {
		t.Errorf("SwingLow = %v, want 9", got)
	}
	if got := SwingHigh(bars, 4); !math.IsNaN(got) {
		t.Errorf("SwingHigh with insufficient data = %v, want NaN", got)
	}
}

// Causality: extending the series must not change what a snapshot computed
// on the shorter prefix would have seen.
func TestSnapshotCausal(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	bars := mkBars(closes...)
	p := DefaultParams()

	prefix := Snapshot("TEST", "5m", bars[:50], p)
	again := Snapshot("TEST", "5m", bars[:50], p)
	for name, v := range prefix.Values {
		w := again.Values[name]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			t.Errorf("snapshot not deterministic for %s: %v vs %v", name, v, w)
		}
	}

	full := Snapshot("TEST", "5m", bars, p)
	if full.AsOf.Equal(prefix.AsOf) {
		t.Error("snapshots of different prefixes should have different AsOf")
	}
}

func TestSnapshotWarmupNaN(t *testing.T) {
	snap := Snapshot("TEST", "5m", mkBars(1, 2, 3), DefaultParams())
	for _, name := range []string{ValueFastMA, ValueSlowMA, ValueADX, ValueMACDHist, ValueATR, ValueRSI} {
		if !math.IsNaN(snap.Values[name]) {
			t.Errorf("%s with 3 bars = %v, want NaN", name, snap.Values[name])
		}
	}
	if snap.Values[ValueClose] != 3 {
		t.Errorf("close = %v, want 3", snap.Values[ValueClose])
	}
}
