// Package live polls the market-data feed on a fixed interval, funnels newly
// closed bars through the same decision components the backtester uses, and
// records the resulting signals. Orders are routed through the configured
// broker and mirrored in a tracking portfolio.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/internal/broker"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/engine"
	"marketpulse/internal/indicator"
	"marketpulse/internal/regime"
	"marketpulse/internal/relstrength"
	"marketpulse/internal/risk"
	"marketpulse/internal/series"
	"marketpulse/internal/signal"
	"marketpulse/internal/store"
	"marketpulse/internal/util"
)

// BarFetcher supplies closed bars for the polling loop.
type BarFetcher interface {
	FetchLatest(ctx context.Context, symbols []string, tfs []domain.Timeframe, since time.Time) ([]domain.Bar, error)
}

// Loop is the live polling adapter.
type Loop struct {
	cfg     *config.Config
	fetcher BarFetcher
	broker  broker.Broker
	signals store.SignalLog // may be nil
	scorer  *risk.Scorer
	ranker  *relstrength.Ranker
	limits  *engine.Limits
	sets    map[domain.RegimeState]engine.DecisionSet
	tfs     []domain.Timeframe
	cal     *util.TradingCalendar
	log     *slog.Logger
	metrics *metrics

	store      *series.Store
	portfolio  *domain.PortfolioState
	detectors  map[string]*regime.Detector
	regimeSeen map[string]int
	marks      map[string]float64
	peak       float64
	lastFetch  time.Time
}

// NewLoop creates a live loop from a validated configuration. signals may be
// nil to skip persistence. reg receives the loop's Prometheus instruments.
func NewLoop(cfg *config.Config, fetcher BarFetcher, brk broker.Broker, signals store.SignalLog, reg prometheus.Registerer) (*Loop, error) {
	scorer, err := risk.NewScorer(cfg.Engine.Risk.Weights)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		cfg:        cfg,
		fetcher:    fetcher,
		broker:     brk,
		signals:    signals,
		scorer:     scorer,
		ranker:     relstrength.NewRanker(cfg.Engine.Risk.RelStrengthLookback),
		limits:     engine.NewLimits(cfg),
		sets:       engine.BuildSets(cfg),
		tfs:        engine.Timeframes(cfg),
		cal:        util.NewTradingCalendar(),
		log:        slog.Default().With("component", "live"),
		metrics:    newMetrics(reg),
		store:      series.NewStore(),
		portfolio:  domain.NewPortfolioState(cfg.Live.Equity),
		detectors:  make(map[string]*regime.Detector),
		regimeSeen: make(map[string]int),
		marks:      make(map[string]float64),
		peak:       cfg.Live.Equity,
	}
	for _, sym := range l.watchlist() {
		l.detectors[sym] = regime.NewDetector(cfg.Engine.Regime.ADXThreshold, cfg.Engine.Regime.HysteresisK)
	}
	return l, nil
}

// watchlist is the configured symbols plus the benchmark, deduplicated.
func (l *Loop) watchlist() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sym := range l.cfg.Engine.Symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	if b := l.cfg.Engine.Benchmark; b != "" && !seen[b] {
		out = append(out, b)
	}
	return out
}

// Run polls until ctx is cancelled. The first cycle backfills the configured
// lookback so indicators have warm history.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.PollInterval()
	finest := l.tfs[0]
	l.lastFetch = time.Now().UTC().Add(-time.Duration(l.cfg.Live.Lookback) * finest.Duration())

	l.log.Info("live loop starting",
		"symbols", l.cfg.Engine.Symbols,
		"timeframes", l.cfg.Engine.Timeframes,
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("live loop stopping")
			return ctx.Err()
		case now := <-ticker.C:
			// Poll once more right after the close to pick up the final bar,
			// then sleep out the gap to the next session.
			if !l.cal.IsMarketOpen(now) && !l.cal.IsMarketOpen(now.Add(-interval)) {
				l.idleUntilOpen(ctx, now)
				continue
			}
			l.cycle(ctx)
		}
	}
}

// idleUntilOpen sleeps through the off-session gap instead of polling a
// closed market. It returns early on cancellation and lets the caller's
// select observe ctx.
func (l *Loop) idleUntilOpen(ctx context.Context, now time.Time) {
	open := l.cal.NextOpen(now)
	l.log.Info("market closed, idling",
		"next_open", open,
		"next_close", l.cal.NextClose(open))
	timer := time.NewTimer(open.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// cycle fetches new bars and re-evaluates every symbol that gained one.
func (l *Loop) cycle(ctx context.Context) {
	start := time.Now()
	defer l.metrics.observeCycle(start)

	// Refetch with one finest-bar of overlap so a bar that closed right at
	// the boundary is never missed; the fetcher widens the window further
	// for each coarser timeframe, and duplicates are dropped on append.
	since := l.lastFetch.Add(-l.tfs[0].Duration())
	bars, err := l.fetcher.FetchLatest(ctx, l.watchlist(), l.tfs, since)
	if err != nil {
		l.metrics.cycleErrors.Inc()
		l.log.Error("fetch failed", "err", err)
		return
	}
	l.lastFetch = time.Now().UTC()

	touched := l.ingest(bars)
	for _, sym := range touched {
		if sym == l.cfg.Engine.Benchmark && !l.isTraded(sym) {
			continue
		}
		l.evaluate(ctx, sym)
	}
	l.metrics.equity.Set(l.portfolio.Equity(l.marks))
}

func (l *Loop) isTraded(symbol string) bool {
	for _, sym := range l.cfg.Engine.Symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// ingest appends bars that extend their series, skipping duplicates from the
// fetch overlap. It returns the symbols that gained a finest-timeframe bar,
// sorted for deterministic evaluation order.
func (l *Loop) ingest(bars []domain.Bar) []string {
	touched := make(map[string]bool)
	for _, b := range bars {
		s := l.store.Ensure(b.Symbol, b.Timeframe)
		if last, ok := s.Last(); ok && !b.OpenTime.After(last.OpenTime) {
			continue
		}
		if err := l.store.Append(b); err != nil {
			l.log.Warn("bar rejected", "symbol", b.Symbol, "timeframe", b.Timeframe, "err", err)
			continue
		}
		l.metrics.barsIngested.Inc()
		if b.Timeframe == l.tfs[0] {
			touched[b.Symbol] = true
			l.marks[b.Symbol] = b.Close
		}
	}
	out := make([]string, 0, len(touched))
	for sym := range touched {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// evaluate runs one decision cycle for a symbol at the latest closed bar.
func (l *Loop) evaluate(ctx context.Context, symbol string) {
	finest := l.tfs[0]
	fs := l.store.Get(symbol, finest)
	last, ok := fs.Last()
	if !ok {
		return
	}
	at := last.OpenTime.Add(finest.Duration())

	// Advance the regime when a regime-timeframe bar has closed.
	det := l.detectors[symbol]
	regimeTF := domain.Timeframe(l.cfg.Engine.RegimeTimeframe)
	if s := l.store.Get(symbol, regimeTF); s != nil {
		closed := s.BarsUpTo(at)
		if len(closed) > l.regimeSeen[symbol] {
			l.regimeSeen[symbol] = len(closed)
			snap := indicator.Snapshot(symbol, regimeTF, closed, l.sets[det.Current().State].Params)
			det.Observe(snap)
		}
	}
	current := det.Current()
	set := l.sets[current.State]

	snaps := make(map[domain.Timeframe]domain.IndicatorSnapshot, len(l.tfs))
	for _, tf := range l.tfs {
		s := l.store.Get(symbol, tf)
		if s == nil {
			continue
		}
		closed := s.BarsUpTo(at)
		if len(closed) == 0 {
			continue
		}
		snaps[tf] = indicator.Snapshot(symbol, tf, closed, set.Params)
	}

	score := l.scoreRisk(symbol, at, snaps[finest], current)
	sig := set.Generator.Evaluate(signal.Inputs{
		Symbol:       symbol,
		AsOf:         at,
		Snapshots:    snaps,
		Regime:       current,
		Risk:         score,
		OpenPosition: l.portfolio.Positions[symbol],
	})
	if sig.Direction == domain.DirectionNone {
		return
	}

	l.metrics.signals.WithLabelValues(string(sig.Direction)).Inc()
	l.log.Info("signal",
		"symbol", symbol,
		"direction", sig.Direction,
		"regime", current.State,
		"risk", fmt.Sprintf("%.1f", score.Score),
		"confidence", fmt.Sprintf("%.2f", sig.Confidence))
	if l.signals != nil {
		if err := l.signals.AppendSignal(ctx, sig); err != nil {
			l.log.Error("persist signal failed", "symbol", symbol, "err", err)
		}
	}

	l.apply(ctx, sig, set, snaps[finest], last.Close, at)
}

// apply routes the signal through the broker and mirrors the fill in the
// tracking portfolio, which feeds the risk scorer and the exposure limits.
func (l *Loop) apply(ctx context.Context, sig domain.Signal, set engine.DecisionSet, snap domain.IndicatorSnapshot, price float64, at time.Time) {
	symbol := sig.Symbol
	switch sig.Direction {
	case domain.DirectionExit:
		pos := l.portfolio.Positions[symbol]
		if pos == nil {
			return
		}
		fill, err := l.broker.SubmitExit(ctx, pos, price)
		if err != nil {
			l.log.Error("exit order failed", "symbol", symbol, "err", err)
			return
		}
		switch pos.Direction {
		case domain.DirectionLong:
			l.portfolio.Cash += pos.Quantity * fill.Price
		case domain.DirectionShort:
			l.portfolio.Cash += pos.Quantity * (2*pos.EntryPrice - fill.Price)
		}
		delete(l.portfolio.Positions, symbol)
		l.log.Info("position closed", "symbol", symbol, "price", fill.Price, "broker", l.broker.Name())

	case domain.DirectionLong, domain.DirectionShort:
		equity := l.portfolio.Equity(l.marks)
		order := set.Sizer.Size(equity, price, snap.Values[indicator.ValueATR], sig.Direction)
		if order.Quantity == 0 {
			return
		}
		notional := order.Quantity * price
		if err := l.limits.CheckEntry(l.portfolio, l.marks, symbol, notional); err != nil {
			l.log.Info("entry blocked", "symbol", symbol, "reason", err)
			return
		}
		fill, err := l.broker.SubmitEntry(ctx, broker.Order{
			Symbol:         symbol,
			Direction:      sig.Direction,
			Quantity:       order.Quantity,
			ReferencePrice: price,
			StopPrice:      order.StopPrice,
			TakeProfit:     order.TakeProfit,
		})
		if err != nil {
			l.log.Error("entry order failed", "symbol", symbol, "err", err)
			return
		}
		l.portfolio.Cash -= fill.Quantity * fill.Price
		l.portfolio.Positions[symbol] = &domain.Position{
			Symbol:        symbol,
			Direction:     sig.Direction,
			EntryTime:     at,
			EntryPrice:    fill.Price,
			Quantity:      fill.Quantity,
			StopPrice:     order.StopPrice,
			TakeProfit:    order.TakeProfit,
			TrailDistance: order.TrailDistance,
			BestPrice:     fill.Price,
		}
		l.log.Info("position opened",
			"symbol", symbol,
			"direction", sig.Direction,
			"qty", fill.Quantity,
			"price", fill.Price,
			"stop", order.StopPrice,
			"take_profit", order.TakeProfit,
			"broker", l.broker.Name())
	}
}

// scoreRisk mirrors the backtester's risk input assembly on live series.
func (l *Loop) scoreRisk(symbol string, at time.Time, snap domain.IndicatorSnapshot, reg domain.Regime) domain.RiskScore {
	finest := l.tfs[0]

	open := make(map[string][]domain.Bar)
	for sym := range l.portfolio.Positions {
		if sym == symbol {
			continue
		}
		if s := l.store.Get(sym, finest); s != nil {
			open[sym] = s.BarsUpTo(at)
		}
	}
	var candidate []domain.Bar
	if s := l.store.Get(symbol, finest); s != nil {
		candidate = s.BarsUpTo(at)
	}

	bySymbol := make(map[string][]domain.Bar, len(l.cfg.Engine.Symbols))
	for _, sym := range l.cfg.Engine.Symbols {
		if s := l.store.Get(sym, finest); s != nil {
			bySymbol[sym] = s.BarsUpTo(at)
		}
	}
	var benchBars []domain.Bar
	if b := l.cfg.Engine.Benchmark; b != "" {
		if s := l.store.Get(b, finest); s != nil {
			benchBars = s.BarsUpTo(at)
		}
	}
	ranks := l.ranker.Rank(bySymbol, benchBars)

	equity := l.portfolio.Equity(l.marks)
	if equity > l.peak {
		l.peak = equity
	}
	dd := 0.0
	if l.peak > 0 && equity < l.peak {
		dd = (l.peak - equity) / l.peak
	}

	return l.scorer.Score(risk.Inputs{
		Symbol:          symbol,
		AsOf:            at,
		Snapshot:        snap,
		Regime:          reg,
		RelStrengthRank: ranks[symbol],
		MaxCorrelation:  risk.MaxCorrelation(candidate, open, l.cfg.Engine.Risk.CorrelationWindow),
		CorrelationCap:  l.cfg.Engine.Risk.CorrelationCap,
		DrawdownPct:     dd,
	})
}
