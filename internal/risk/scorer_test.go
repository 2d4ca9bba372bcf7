package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"marketpulse/internal/domain"
	"marketpulse/internal/indicator"
)

func neutralInputs() Inputs {
	return Inputs{
		Symbol: "TEST",
		AsOf:   time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		Snapshot: domain.IndicatorSnapshot{
			Values: map[string]float64{
				indicator.ValueATR:       1,
				indicator.ValueClose:     100,
				indicator.ValueRSI:       50,
				indicator.ValueADX:       25,
				indicator.ValueVolumeZ:   0,
				indicator.ValueSwingHigh: 110,
				indicator.ValueSwingLow:  90,
			},
		},
		Regime:          domain.Regime{State: domain.RegimeBullish, Confidence: 0.5},
		RelStrengthRank: 0.5,
		MaxCorrelation:  math.NaN(),
		CorrelationCap:  0.8,
	}
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	var cfgErr *domain.ConfigurationError

	_, err := NewScorer(map[string]float64{"no_such_metric": 1})
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown metric: got %v, want *domain.ConfigurationError", err)
	}

	_, err = NewScorer(map[string]float64{MetricVolatility: -0.5, MetricDrawdown: 1.5})
	if err == nil {
		t.Error("negative weight should be rejected")
	}

	_, err = NewScorer(map[string]float64{MetricVolatility: 0.5, MetricDrawdown: 0.4})
	if err == nil {
		t.Error("weights not summing to 1 should be rejected")
	}

	_, err = NewScorer(map[string]float64{MetricVolatility: 0})
	if err == nil {
		t.Error("all-zero weights should be rejected")
	}
}

func TestScoreIsWeightedComposite(t *testing.T) {
	s, err := NewScorer(map[string]float64{
		MetricVolatility: 0.5,
		MetricDrawdown:   0.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	in := neutralInputs()
	in.DrawdownPct = 0.20 // at the reference: component pegs at 100

	score := s.Score(in)
	// volatility: 1/100*100 = 1% of price -> 20; drawdown -> 100.
	want := 0.5*20 + 0.5*100
	if math.Abs(score.Score-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", score.Score, want)
	}
	if math.Abs(score.Components[MetricDrawdown]-50) > 1e-9 {
		t.Errorf("drawdown component = %v, want 50", score.Components[MetricDrawdown])
	}
}

func TestScoreMonotonicInVolatility(t *testing.T) {
	s, err := NewScorer(map[string]float64{MetricVolatility: 1})
	if err != nil {
		t.Fatal(err)
	}
	calm := neutralInputs()
	wild := neutralInputs()
	wild.Snapshot.Values[indicator.ValueATR] = 4

	if sc, sw := s.Score(calm).Score, s.Score(wild).Score; sc >= sw {
		t.Errorf("higher ATR must not lower the score: calm %v, wild %v", sc, sw)
	}
}

func TestCorrelationHardCap(t *testing.T) {
	s, err := NewScorer(map[string]float64{MetricCorrelation: 1})
	if err != nil {
		t.Fatal(err)
	}

	in := neutralInputs()
	in.MaxCorrelation = 0.85 // above the 0.8 cap
	if got := s.Score(in).Score; got != 100 {
		t.Errorf("correlation at the cap: score = %v, want pinned 100", got)
	}

	in.MaxCorrelation = 0.5
	if got := s.Score(in).Score; got != 50 {
		t.Errorf("correlation below cap: score = %v, want 50", got)
	}

	in.MaxCorrelation = math.NaN() // no open positions
	if got := s.Score(in).Score; got != 0 {
		t.Errorf("no open positions: score = %v, want 0", got)
	}
}

func TestRegisterAndValidate(t *testing.T) {
	s, err := NewScorer(map[string]float64{MetricVolatility: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register("custom", 0.5, func(Inputs) float64 { return 10 }); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err == nil {
		t.Error("Validate should flag weights summing to 1.5")
	}
	if err := s.Register("custom", 0.5, func(Inputs) float64 { return 10 }); err == nil {
		t.Error("duplicate metric name should be rejected")
	}
}

func TestMetricsNeutralOnNaN(t *testing.T) {
	in := Inputs{
		Snapshot:        domain.IndicatorSnapshot{Values: map[string]float64{}},
		RelStrengthRank: math.NaN(),
		MaxCorrelation:  math.NaN(),
	}
	// Missing map entries read as 0.0, so only metrics keyed on explicitly
	// NaN values fall back; feed NaN explicitly.
	for _, name := range []string{
		indicator.ValueATR, indicator.ValueClose, indicator.ValueRSI,
		indicator.ValueADX, indicator.ValueVolumeZ,
		indicator.ValueSwingHigh, indicator.ValueSwingLow,
	} {
		in.Snapshot.Values[name] = math.NaN()
	}

	for _, m := range []struct {
		name string
		fn   Metric
		want float64
	}{
		{MetricVolatility, volatilityMetric, 50},
		{MetricRelStrength, relStrengthMetric, 50},
		{MetricMomentumExtreme, momentumMetric, 50},
		{MetricTrendWeakness, trendWeaknessMetric, 50},
		{MetricVolumeAnomaly, volumeAnomalyMetric, 50},
		{MetricSwingDistance, swingDistanceMetric, 50},
		{MetricCorrelation, correlationMetric, 0},
	} {
		if got := m.fn(in); got != m.want {
			t.Errorf("%s on NaN inputs = %v, want %v", m.name, got, m.want)
		}
	}
}

func TestCorrelation(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mk := func(closes ...float64) []domain.Bar {
		bars := make([]domain.Bar, len(closes))
		for i, c := range closes {
			bars[i] = domain.Bar{
				Symbol: "X", Timeframe: "1d",
				OpenTime: t0.AddDate(0, 0, i),
				Open:     c, High: c, Low: c, Close: c, Volume: 1,
			}
		}
		return bars
	}

	a := mk(100, 101, 103, 102, 105, 104)
	// b moves in lockstep with a: correlation 1.
	b := mk(50, 50.5, 51.5, 51, 52.5, 52)
	if got := Correlation(a, b, 5); math.Abs(got-1) > 1e-9 {
		t.Errorf("lockstep correlation = %v, want 1", got)
	}

	// Flat series has zero return variance.
	flat := mk(10, 10, 10, 10, 10, 10)
	if got := Correlation(a, flat, 5); !math.IsNaN(got) {
		t.Errorf("zero-variance correlation = %v, want NaN", got)
	}

	if got := MaxCorrelation(a, nil, 5); !math.IsNaN(got) {
		t.Errorf("MaxCorrelation with no open positions = %v, want NaN", got)
	}
	open := map[string][]domain.Bar{"B": b, "FLAT": flat}
	if got := MaxCorrelation(a, open, 5); math.Abs(got-1) > 1e-9 {
		t.Errorf("MaxCorrelation = %v, want 1", got)
	}
}
