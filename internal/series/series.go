// Package series provides the in-memory, append-only store of OHLCV bars
// keyed by (symbol, timeframe).
package series

import (
	"sort"
	"time"

	"marketpulse/internal/domain"
)

// Series is an ordered, append-only sequence of bars for one
// (symbol, timeframe) pair. Insertion order is time order; Append rejects
// anything that would violate that.
type Series struct {
	symbol    string
	timeframe domain.Timeframe
	bars      []domain.Bar
}

// NewSeries creates an empty Series for the given symbol and timeframe.
func NewSeries(symbol string, tf domain.Timeframe) *Series {
	return &Series{symbol: symbol, timeframe: tf}
}

// Symbol returns the symbol this series tracks.
func (s *Series) Symbol() string { return s.symbol }

// Timeframe returns the bar interval of this series.
func (s *Series) Timeframe() domain.Timeframe { return s.timeframe }

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.bars) }

// Append validates the bar and adds it to the end of the series. A bar whose
// open time is not strictly after the last bar, or whose OHLCV fields are
// inconsistent, is rejected with a *domain.DataError and the series is left
// unchanged. Gaps in time are tolerated.
func (s *Series) Append(bar domain.Bar) error {
	if bar.Symbol != s.symbol || bar.Timeframe != s.timeframe {
		return &domain.DataError{
			Symbol: bar.Symbol, Timeframe: bar.Timeframe, OpenTime: bar.OpenTime,
			Reason: "bar does not belong to this series",
		}
	}
	if reason := validate(bar); reason != "" {
		return &domain.DataError{
			Symbol: bar.Symbol, Timeframe: bar.Timeframe, OpenTime: bar.OpenTime,
			Reason: reason,
		}
	}
	if n := len(s.bars); n > 0 && !bar.OpenTime.After(s.bars[n-1].OpenTime) {
		return &domain.DataError{
			Symbol: bar.Symbol, Timeframe: bar.Timeframe, OpenTime: bar.OpenTime,
			Reason: "open time not after previous bar",
		}
	}
	s.bars = append(s.bars, bar)
	return nil
}

// validate returns a non-empty reason string when the bar's fields are
// inconsistent.
func validate(bar domain.Bar) string {
	if bar.OpenTime.IsZero() {
		return "zero open time"
	}
	if bar.Low < 0 || bar.Volume < 0 {
		return "negative price or volume"
	}
	hi, lo := bar.Open, bar.Open
	if bar.Close > hi {
		hi = bar.Close
	}
	if bar.Close < lo {
		lo = bar.Close
	}
	if bar.High < hi || bar.Low > lo {
		return "high/low inconsistent with open/close"
	}
	return ""
}

// Bars returns a read-only view of all bars. The returned slice must not be
// modified; appends never mutate bars already handed out.
func (s *Series) Bars() []domain.Bar {
	return s.bars[:len(s.bars):len(s.bars)]
}

// BarsUpTo returns a read-only view of every bar whose open time plus the
// bar interval is at or before t — that is, every bar that had fully closed
// as of t. Bars still in progress at t are excluded.
func (s *Series) BarsUpTo(t time.Time) []domain.Bar {
	d := s.timeframe.Duration()
	n := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].OpenTime.Add(d).After(t)
	})
	return s.bars[:n:n]
}

// Last returns the most recent bar. The second return value is false when
// the series is empty.
func (s *Series) Last() (domain.Bar, bool) {
	if len(s.bars) == 0 {
		return domain.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Store holds one Series per (symbol, timeframe). It is not safe for
// concurrent use; each backtest or live loop owns its own Store.
type Store struct {
	series map[storeKey]*Series
}

type storeKey struct {
	symbol    string
	timeframe domain.Timeframe
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{series: make(map[storeKey]*Series)}
}

// Ensure returns the series for (symbol, tf), creating it if absent.
func (st *Store) Ensure(symbol string, tf domain.Timeframe) *Series {
	k := storeKey{symbol, tf}
	s, ok := st.series[k]
	if !ok {
		s = NewSeries(symbol, tf)
		st.series[k] = s
	}
	return s
}

// Get returns the series for (symbol, tf), or nil when none exists.
func (st *Store) Get(symbol string, tf domain.Timeframe) *Series {
	return st.series[storeKey{symbol, tf}]
}

// Append routes the bar to its series, creating the series if needed.
func (st *Store) Append(bar domain.Bar) error {
	return st.Ensure(bar.Symbol, bar.Timeframe).Append(bar)
}

// Symbols returns the sorted set of symbols present in the store.
func (st *Store) Symbols() []string {
	seen := make(map[string]bool)
	for k := range st.series {
		seen[k.symbol] = true
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
