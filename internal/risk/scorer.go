// Package risk combines weighted, normalized metrics into a single 0-100
// pre-trade risk score. Lower is safer. Metrics are registered by name with
// non-negative weights summing to 1, so new metrics can be added without
// touching the combination logic.
package risk

import (
	"math"
	"sort"
	"time"

	"marketpulse/internal/domain"
)

// Inputs carries everything a metric may look at for one scoring cycle.
type Inputs struct {
	Symbol   string
	AsOf     time.Time
	Snapshot domain.IndicatorSnapshot
	Regime   domain.Regime

	// RelStrengthRank is the symbol's relative-strength rank in [0, 1],
	// NaN when unknown.
	RelStrengthRank float64

	// MaxCorrelation is the highest return correlation between this symbol
	// and any open position, NaN when there are no open positions.
	MaxCorrelation float64

	// CorrelationCap is the configured hard exposure cap; at or beyond it
	// the correlation component is pinned to the worst value.
	CorrelationCap float64

	// DrawdownPct is the portfolio's current drawdown from its equity peak
	// as a fraction in [0, 1].
	DrawdownPct float64
}

// Metric maps Inputs to a normalized risk value in [0, 100], 100 riskiest.
type Metric func(in Inputs) float64

// weightTolerance is the allowed deviation of the weight sum from 1.
const weightTolerance = 1e-6

type namedMetric struct {
	name   string
	weight float64
	fn     Metric
}

// Scorer combines registered metrics into a composite score.
type Scorer struct {
	metrics []namedMetric
}

// NewScorer creates a Scorer from the configured name→weight map, binding
// each name to its built-in metric. Unknown names, negative weights, and
// weight sums away from 1 are configuration errors reported before any bar
// is processed.
func NewScorer(weights map[string]float64) (*Scorer, error) {
	builtins := Builtins()
	s := &Scorer{}
	sum := 0.0

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := weights[name]
		fn, ok := builtins[name]
		if !ok {
			return nil, &domain.ConfigurationError{Field: "risk.weights", Reason: "unknown metric " + name}
		}
		if w < 0 {
			return nil, &domain.ConfigurationError{Field: "risk.weights", Reason: "negative weight for " + name}
		}
		if w == 0 {
			continue
		}
		s.metrics = append(s.metrics, namedMetric{name: name, weight: w, fn: fn})
		sum += w
	}

	if len(s.metrics) == 0 {
		return nil, &domain.ConfigurationError{Field: "risk.weights", Reason: "no metrics with positive weight"}
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, &domain.ConfigurationError{Field: "risk.weights", Reason: "weights must sum to 1"}
	}
	return s, nil
}

// Register adds a custom metric with the given weight. It is intended for
// extensions; the caller is responsible for re-checking that weights still
// sum to 1 via Validate.
func (s *Scorer) Register(name string, weight float64, fn Metric) error {
	if weight < 0 {
		return &domain.ConfigurationError{Field: "risk.weights", Reason: "negative weight for " + name}
	}
	for _, m := range s.metrics {
		if m.name == name {
			return &domain.ConfigurationError{Field: "risk.weights", Reason: "duplicate metric " + name}
		}
	}
	s.metrics = append(s.metrics, namedMetric{name: name, weight: weight, fn: fn})
	return nil
}

// Validate checks that the registered weights sum to 1.
func (s *Scorer) Validate() error {
	sum := 0.0
	for _, m := range s.metrics {
		sum += m.weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return &domain.ConfigurationError{Field: "risk.weights", Reason: "weights must sum to 1"}
	}
	return nil
}

// Score evaluates every registered metric and returns the weighted
// composite. Components records each metric's weighted contribution.
func (s *Scorer) Score(in Inputs) domain.RiskScore {
	score := domain.RiskScore{
		Symbol:     in.Symbol,
		AsOf:       in.AsOf,
		Components: make(map[string]float64, len(s.metrics)),
	}
	for _, m := range s.metrics {
		contribution := m.weight * clamp100(m.fn(in))
		score.Components[m.name] = contribution
		score.Score += contribution
	}
	return score
}
