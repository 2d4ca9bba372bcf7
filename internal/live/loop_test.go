package live

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/internal/broker"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
)

var liveStart = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// fakeFetcher hands out one batch per call.
type fakeFetcher struct {
	batches [][]domain.Bar
	err     error
}

func (f *fakeFetcher) FetchLatest(context.Context, []string, []domain.Timeframe, time.Time) ([]domain.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func trendBars(symbol string, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		c := 100.0 + float64(i)
		bars[i] = domain.Bar{
			Symbol: symbol, Timeframe: "1h",
			OpenTime: liveStart.Add(time.Duration(i) * time.Hour),
			Open:     c - 1, High: c + 0.5, Low: c - 1.5, Close: c, Volume: 1000,
		}
	}
	return bars
}

// liveConfig mirrors the short-window setup the backtester tests use so a
// 30-bar history clears indicator warm-up.
func liveConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default([]string{"TREND"}, []string{"1h"})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Engine.Indicators = config.IndicatorPeriods{
		FastMA: 3, SlowMA: 6, LongMA: 8, ADX: 3,
		MACDFast: 3, MACDSlow: 6, MACDSignal: 3,
		ATR: 3, VolumeWindow: 5, RSI: 3, SwingLookback: 5,
	}
	cfg.Engine.Regime = config.Regime{ADXThreshold: 5, HysteresisK: 1}
	cfg.Engine.Risk.RSIOverbought = 101
	cfg.Engine.Risk.MinVolumeZ = -1
	return cfg
}

func newTestLoop(t *testing.T, cfg *config.Config, f BarFetcher) *Loop {
	t.Helper()
	l, err := NewLoop(cfg, f, broker.NewPaperBroker(), nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestIngestSkipsStaleBars(t *testing.T) {
	l := newTestLoop(t, liveConfig(t), &fakeFetcher{})
	bars := trendBars("TREND", 3)

	touched := l.ingest(bars)
	if len(touched) != 1 || touched[0] != "TREND" {
		t.Fatalf("touched = %v, want [TREND]", touched)
	}
	if got := l.store.Get("TREND", "1h").Len(); got != 3 {
		t.Fatalf("stored bars = %d, want 3", got)
	}

	// Refetch overlap: the same bars come back plus one new one. Only the new
	// bar lands.
	touched = l.ingest(append(bars, trendBars("TREND", 4)[3]))
	if len(touched) != 1 {
		t.Fatalf("touched = %v, want [TREND]", touched)
	}
	if got := l.store.Get("TREND", "1h").Len(); got != 4 {
		t.Errorf("stored bars = %d, want 4", got)
	}
}

func TestIngestIgnoresUntouchedSymbols(t *testing.T) {
	l := newTestLoop(t, liveConfig(t), &fakeFetcher{})
	l.ingest(trendBars("TREND", 2))
	if touched := l.ingest(trendBars("TREND", 2)); len(touched) != 0 {
		t.Errorf("no new bars but touched = %v", touched)
	}
}

func TestCycleOpensPositionOnTrend(t *testing.T) {
	cfg := liveConfig(t)
	f := &fakeFetcher{batches: [][]domain.Bar{trendBars("TREND", 30)}}
	l := newTestLoop(t, cfg, f)

	l.cycle(context.Background())

	pos := l.portfolio.Positions["TREND"]
	if pos == nil {
		t.Fatal("trend cycle opened no position")
	}
	if pos.Direction != domain.DirectionLong {
		t.Errorf("direction = %q, want long", pos.Direction)
	}
	if pos.Quantity <= 0 {
		t.Errorf("quantity = %v, want > 0", pos.Quantity)
	}
	if pos.EntryPrice != 129 {
		t.Errorf("entry price = %v, want last close 129", pos.EntryPrice)
	}
	if pos.StopPrice >= pos.EntryPrice {
		t.Errorf("stop %v not below entry %v", pos.StopPrice, pos.EntryPrice)
	}
	if l.portfolio.Cash >= cfg.Live.Equity {
		t.Error("cash not debited on entry")
	}
}

func TestCycleFetchErrorLeavesStateUntouched(t *testing.T) {
	cfg := liveConfig(t)
	l := newTestLoop(t, cfg, &fakeFetcher{err: context.DeadlineExceeded})

	l.cycle(context.Background())

	if len(l.portfolio.Positions) != 0 {
		t.Error("failed fetch must not trade")
	}
	if l.portfolio.Cash != cfg.Live.Equity {
		t.Errorf("cash = %v, want untouched %v", l.portfolio.Cash, cfg.Live.Equity)
	}
}

func TestApplyExitClosesPosition(t *testing.T) {
	cfg := liveConfig(t)
	l := newTestLoop(t, cfg, &fakeFetcher{})
	l.portfolio.Cash = 0
	l.portfolio.Positions["TREND"] = &domain.Position{
		Symbol: "TREND", Direction: domain.DirectionLong,
		EntryTime: liveStart, EntryPrice: 100, Quantity: 10,
		StopPrice: 95, BestPrice: 100,
	}

	sig := domain.Signal{Symbol: "TREND", Direction: domain.DirectionExit, AsOf: liveStart.Add(time.Hour)}
	l.apply(context.Background(), sig, l.sets[domain.RegimeRanging], domain.IndicatorSnapshot{}, 104, sig.AsOf)

	if _, open := l.portfolio.Positions["TREND"]; open {
		t.Fatal("exit signal left the position open")
	}
	// Paper broker fills at the reference price.
	if l.portfolio.Cash != 1040 {
		t.Errorf("cash = %v, want 1040", l.portfolio.Cash)
	}
}

func TestIdleUntilOpenReturnsOnCancel(t *testing.T) {
	l := newTestLoop(t, liveConfig(t), &fakeFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		// A Saturday: the next open is almost two days out.
		l.idleUntilOpen(ctx, time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("idleUntilOpen did not return on a cancelled context")
	}
}

func TestWatchlistIncludesBenchmarkOnce(t *testing.T) {
	cfg := liveConfig(t)
	cfg.Engine.Symbols = []string{"TREND", "SPY"}
	cfg.Engine.Benchmark = "SPY"
	l := newTestLoop(t, cfg, &fakeFetcher{})

	wl := l.watchlist()
	if len(wl) != 2 {
		t.Errorf("watchlist = %v, want [TREND SPY]", wl)
	}
}
