// Package relstrength ranks symbols by performance relative to a benchmark
// and tracks per-sector portfolio exposure.
package relstrength

import (
	"math"
	"sort"

	"marketpulse/internal/domain"
)

// Ranker computes relative-strength ranks over a fixed lookback window of
// bars. A rank of 1 is the strongest symbol relative to the benchmark, 0 the
// weakest; with no benchmark or insufficient data a symbol's rank is NaN.
type Ranker struct {
	lookback int
}

// NewRanker creates a Ranker with the given lookback bar count.
func NewRanker(lookback int) *Ranker {
	if lookback < 2 {
		lookback = 2
	}
	return &Ranker{lookback: lookback}
}

// periodReturn returns the fractional close-to-close return over the last
// lookback bars, or NaN with insufficient data.
func (r *Ranker) periodReturn(bars []domain.Bar) float64 {
	if len(bars) < r.lookback {
		return math.NaN()
	}
	first := bars[len(bars)-r.lookback].Close
	last := bars[len(bars)-1].Close
	if first == 0 {
		return math.NaN()
	}
	return last/first - 1
}

// Rank returns each symbol's relative-strength rank in [0, 1]. Excess return
// over the benchmark orders the symbols; ties break by symbol name so the
// ranks stay distinct and runs stay deterministic. Symbols without enough
// data get NaN. With a single rankable symbol the rank is 0.5.
func (r *Ranker) Rank(bySymbol map[string][]domain.Bar, benchmark []domain.Bar) map[string]float64 {
	bench := r.periodReturn(benchmark)
	if math.IsNaN(bench) {
		bench = 0
	}

	type entry struct {
		symbol string
		excess float64
	}
	rankable := make([]entry, 0, len(bySymbol))
	ranks := make(map[string]float64, len(bySymbol))
	for sym, bars := range bySymbol {
		ret := r.periodReturn(bars)
		if math.IsNaN(ret) {
			ranks[sym] = math.NaN()
			continue
		}
		rankable = append(rankable, entry{symbol: sym, excess: ret - bench})
	}

	if len(rankable) == 1 {
		ranks[rankable[0].symbol] = 0.5
		return ranks
	}
	sort.Slice(rankable, func(i, j int) bool {
		if rankable[i].excess != rankable[j].excess {
			return rankable[i].excess < rankable[j].excess
		}
		return rankable[i].symbol < rankable[j].symbol
	})
	for i, e := range rankable {
		ranks[e.symbol] = float64(i) / float64(len(rankable)-1)
	}
	return ranks
}

// SectorMap maps symbols to sector names. Symbols absent from the map are
// treated as their own sector.
type SectorMap map[string]string

// Sector returns the sector for a symbol, defaulting to the symbol itself.
func (m SectorMap) Sector(symbol string) string {
	if m == nil {
		return symbol
	}
	if s, ok := m[symbol]; ok {
		return s
	}
	return symbol
}

// Exposure returns each sector's share of equity held in open positions,
// marking positions at the supplied prices. Equity must be positive;
// otherwise the result is empty.
func Exposure(m SectorMap, portfolio *domain.PortfolioState, marks map[string]float64, equity float64) map[string]float64 {
	out := make(map[string]float64)
	if equity <= 0 {
		return out
	}
	for sym, pos := range portfolio.Positions {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.EntryPrice
		}
		out[m.Sector(sym)] += pos.Quantity * mark / equity
	}
	return out
}
