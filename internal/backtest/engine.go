// Package backtest replays historical bars through the signal generator and
// position sizer against a simulated portfolio, producing a trade log and
// performance metrics. Runs are deterministic: identical bars and
// configuration yield an identical trade log.
package backtest

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/engine"
	"marketpulse/internal/indicator"
	"marketpulse/internal/regime"
	"marketpulse/internal/relstrength"
	"marketpulse/internal/risk"
	"marketpulse/internal/series"
	"marketpulse/internal/signal"
)

// Result is the outcome of one backtest run.
type Result struct {
	Portfolio *domain.PortfolioState
	Trades    []domain.ClosedTrade
	Metrics   Metrics

	// Failures records symbols whose simulation aborted fatally, keyed by
	// symbol. A failed symbol's positions are liquidated at the last known
	// price and it takes no further part in the run; other symbols finish.
	Failures map[string]error
}

// Engine drives backtests. One Engine may run many backtests; each Run owns
// all of its mutable state.
type Engine struct {
	cfg    *config.Config
	scorer *risk.Scorer
	ranker *relstrength.Ranker
	limits *engine.Limits
	sets   map[domain.RegimeState]engine.DecisionSet
	tfs    []domain.Timeframe
	log    *slog.Logger
}

// New creates an Engine from a validated configuration.
func New(cfg *config.Config) (*Engine, error) {
	scorer, err := risk.NewScorer(cfg.Engine.Risk.Weights)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		scorer: scorer,
		ranker: relstrength.NewRanker(cfg.Engine.Risk.RelStrengthLookback),
		limits: engine.NewLimits(cfg),
		sets:   engine.BuildSets(cfg),
		tfs:    engine.Timeframes(cfg),
		log:    slog.Default().With("component", "backtest"),
	}, nil
}

// symbolState is the per-symbol simulation state inside one run.
type symbolState struct {
	detector     *regime.Detector
	regimeTFSeen int // closed regime-timeframe bars already observed
	failed       bool

	// snapshot cache: one entry per timeframe, reused while no new bar of
	// that timeframe has closed and the regime state is unchanged.
	snapCount map[domain.Timeframe]int
	snapState map[domain.Timeframe]domain.RegimeState
	snaps     map[domain.Timeframe]domain.IndicatorSnapshot
}

// run is the mutable state of one backtest pass.
type run struct {
	e         *Engine
	store     *series.Store
	portfolio *domain.PortfolioState
	symbols   []string
	states    map[string]*symbolState
	trades    []domain.ClosedTrade
	failures  map[string]error
	marks     map[string]float64 // last seen close per symbol
	peak      float64            // equity peak for drawdown tracking
	finest    domain.Timeframe
}

// tick is one finest-timeframe bar close event on the merged timeline.
type tick struct {
	at     time.Time
	symbol string
	bar    domain.Bar
}

// Run executes one deterministic forward pass over the given symbols' bars
// in the store, sharing a single portfolio. Symbols with no finest-timeframe
// data are skipped. The error return is reserved for setup problems;
// per-symbol fatal errors land in Result.Failures.
func (e *Engine) Run(store *series.Store, symbols []string) (*Result, error) {
	r := &run{
		e:         e,
		store:     store,
		portfolio: domain.NewPortfolioState(e.cfg.Backtest.InitialCash),
		states:    make(map[string]*symbolState),
		failures:  make(map[string]error),
		marks:     make(map[string]float64),
		peak:      e.cfg.Backtest.InitialCash,
		finest:    e.tfs[0],
	}

	// Build the merged timeline of finest-timeframe bar closes, ordered by
	// (close time, symbol) so replays are bit-identical.
	var ticks []tick
	for _, sym := range symbols {
		s := store.Get(sym, r.finest)
		if s == nil || s.Len() == 0 {
			continue
		}
		r.symbols = append(r.symbols, sym)
		r.states[sym] = &symbolState{
			detector:  regime.NewDetector(e.cfg.Engine.Regime.ADXThreshold, e.cfg.Engine.Regime.HysteresisK),
			snapCount: make(map[domain.Timeframe]int),
			snapState: make(map[domain.Timeframe]domain.RegimeState),
			snaps:     make(map[domain.Timeframe]domain.IndicatorSnapshot),
		}
		for _, b := range s.Bars() {
			ticks = append(ticks, tick{at: b.OpenTime.Add(r.finest.Duration()), symbol: sym, bar: b})
		}
	}
	sort.Slice(ticks, func(i, j int) bool {
		if !ticks[i].at.Equal(ticks[j].at) {
			return ticks[i].at.Before(ticks[j].at)
		}
		return ticks[i].symbol < ticks[j].symbol
	})

	for i := 0; i < len(ticks); i++ {
		t := ticks[i]
		if st := r.states[t.symbol]; !st.failed {
			if err := r.step(t); err != nil {
				r.fail(t.symbol, t, err)
			}
		}
		// Record equity once per timestamp, after every symbol's bar at that
		// timestamp has been processed.
		if i+1 == len(ticks) || !ticks[i+1].at.Equal(t.at) {
			r.recordEquity(t.at)
		}
	}

	res := &Result{
		Portfolio: r.portfolio,
		Trades:    r.trades,
		Failures:  r.failures,
	}
	res.Metrics = ComputeMetrics(r.trades, r.portfolio.EquityCurve, e.cfg.Backtest.BarsPerYear, e.cfg.Backtest.InitialCash)
	return res, nil
}

// step processes one finest-timeframe bar close for one symbol: regime
// update, snapshot refresh, exits, then entries — in that fixed order.
func (r *run) step(t tick) error {
	st := r.states[t.symbol]
	r.marks[t.symbol] = t.bar.Close

	// Advance the regime only when a regime-timeframe bar has actually
	// closed as of this timestamp; a bar still in progress is never used.
	regimeTF := domain.Timeframe(r.e.cfg.Engine.RegimeTimeframe)
	if s := r.store.Get(t.symbol, regimeTF); s != nil {
		closed := s.BarsUpTo(t.at)
		if len(closed) > st.regimeTFSeen {
			st.regimeTFSeen = len(closed)
			regimeSnap := indicator.Snapshot(t.symbol, regimeTF, closed, r.e.sets[st.detector.Current().State].Params)
			st.detector.Observe(regimeSnap)
		}
	}
	current := st.detector.Current()
	set := r.e.sets[current.State]

	// Refresh snapshots for timeframes with newly closed bars (or a regime
	// change, which switches the MA periods).
	snaps := make(map[domain.Timeframe]domain.IndicatorSnapshot, len(r.e.tfs))
	for _, tf := range r.e.tfs {
		s := r.store.Get(t.symbol, tf)
		if s == nil {
			continue
		}
		closed := s.BarsUpTo(t.at)
		if len(closed) == 0 {
			continue
		}
		if st.snapCount[tf] != len(closed) || st.snapState[tf] != current.State {
			st.snaps[tf] = indicator.Snapshot(t.symbol, tf, closed, set.Params)
			st.snapCount[tf] = len(closed)
			st.snapState[tf] = current.State
		}
		snaps[tf] = st.snaps[tf]
	}

	// Exits before entries.
	if err := r.evaluatePriceExits(t); err != nil {
		return err
	}

	score := r.scoreRisk(t, snaps[r.finest], current)
	sig := set.Generator.Evaluate(signal.Inputs{
		Symbol:       t.symbol,
		AsOf:         t.at,
		Snapshots:    snaps,
		Regime:       current,
		Risk:         score,
		OpenPosition: r.portfolio.Positions[t.symbol],
	})

	if sig.Direction == domain.DirectionExit {
		if err := r.closePosition(t.symbol, t.at, t.bar.Close, domain.ExitSignalReversal); err != nil {
			return err
		}
		// Exit-before-entry sequencing: with the position gone, a reversal
		// may enter the opposite direction in the same cycle.
		sig = set.Generator.Evaluate(signal.Inputs{
			Symbol:    t.symbol,
			AsOf:      t.at,
			Snapshots: snaps,
			Regime:    current,
			Risk:      score,
		})
	}

	if sig.Direction == domain.DirectionLong || sig.Direction == domain.DirectionShort {
		if err := r.tryEnter(t, sig, snaps[r.finest], set); err != nil {
			return err
		}
	}
	return nil
}

// scoreRisk assembles the scorer inputs for one cycle.
func (r *run) scoreRisk(t tick, snap domain.IndicatorSnapshot, reg domain.Regime) domain.RiskScore {
	open := make(map[string][]domain.Bar)
	for sym := range r.portfolio.Positions {
		if sym == t.symbol {
			continue
		}
		if s := r.store.Get(sym, r.finest); s != nil {
			open[sym] = s.BarsUpTo(t.at)
		}
	}

	var candidate []domain.Bar
	if s := r.store.Get(t.symbol, r.finest); s != nil {
		candidate = s.BarsUpTo(t.at)
	}

	bySymbol := make(map[string][]domain.Bar, len(r.symbols))
	for _, sym := range r.symbols {
		if s := r.store.Get(sym, r.finest); s != nil {
			bySymbol[sym] = s.BarsUpTo(t.at)
		}
	}
	var benchBars []domain.Bar
	if b := r.e.cfg.Engine.Benchmark; b != "" {
		if s := r.store.Get(b, r.finest); s != nil {
			benchBars = s.BarsUpTo(t.at)
		}
	}
	ranks := r.e.ranker.Rank(bySymbol, benchBars)

	equity := r.portfolio.Equity(r.marks)
	dd := 0.0
	if r.peak > 0 && equity < r.peak {
		dd = (r.peak - equity) / r.peak
	}

	return r.e.scorer.Score(risk.Inputs{
		Symbol:          t.symbol,
		AsOf:            t.at,
		Snapshot:        snap,
		Regime:          reg,
		RelStrengthRank: ranks[t.symbol],
		MaxCorrelation:  risk.MaxCorrelation(candidate, open, r.e.cfg.Engine.Risk.CorrelationWindow),
		CorrelationCap:  r.e.cfg.Engine.Risk.CorrelationCap,
		DrawdownPct:     dd,
	})
}

// evaluatePriceExits checks the open position (if any) against the bar's
// intrabar range: stop first, then take profit, then the trailing ratchet
// and the time limit. The stop check uses the stop as it stood at the start
// of the bar; the trailing stop only tightens for the next bar.
func (r *run) evaluatePriceExits(t tick) error {
	pos := r.portfolio.Positions[t.symbol]
	if pos == nil {
		return nil
	}

	switch pos.Direction {
	case domain.DirectionLong:
		if t.bar.Low <= pos.StopPrice {
			fill := pos.StopPrice
			if t.bar.Open < pos.StopPrice {
				fill = t.bar.Open // gapped through the stop
			}
			// A stop at or above entry can only result from trail ratcheting.
			reason := domain.ExitStopLoss
			if pos.TrailDistance > 0 && pos.StopPrice >= pos.EntryPrice {
				reason = domain.ExitTrailingStop
			}
			return r.closePosition(t.symbol, t.at, fill, reason)
		}
		if pos.TakeProfit > 0 && t.bar.High >= pos.TakeProfit {
			return r.closePosition(t.symbol, t.at, pos.TakeProfit, domain.ExitTakeProfit)
		}
		// Ratchet the trailing stop off the new best price.
		if t.bar.High > pos.BestPrice {
			pos.BestPrice = t.bar.High
			if pos.TrailDistance > 0 {
				if trail := pos.BestPrice - pos.TrailDistance; trail > pos.StopPrice {
					pos.StopPrice = trail
				}
			}
		}
	case domain.DirectionShort:
		if t.bar.High >= pos.StopPrice {
			fill := pos.StopPrice
			if t.bar.Open > pos.StopPrice {
				fill = t.bar.Open
			}
			reason := domain.ExitStopLoss
			if pos.TrailDistance > 0 && pos.StopPrice <= pos.EntryPrice {
				reason = domain.ExitTrailingStop
			}
			return r.closePosition(t.symbol, t.at, fill, reason)
		}
		if pos.TakeProfit > 0 && t.bar.Low <= pos.TakeProfit {
			return r.closePosition(t.symbol, t.at, pos.TakeProfit, domain.ExitTakeProfit)
		}
		if t.bar.Low < pos.BestPrice {
			pos.BestPrice = t.bar.Low
			if pos.TrailDistance > 0 {
				if trail := pos.BestPrice + pos.TrailDistance; trail < pos.StopPrice {
					pos.StopPrice = trail
				}
			}
		}
	}

	// Time-based exit at the close once the position's age exceeds the
	// configured maximum (in finest-timeframe bars).
	if max := r.e.cfg.Backtest.MaxHoldingBars; max > 0 {
		age := int(t.at.Sub(pos.EntryTime) / r.finest.Duration())
		if age >= max {
			return r.closePosition(t.symbol, t.at, t.bar.Close, domain.ExitTimeLimit)
		}
	}
	return nil
}

// tryEnter sizes and opens a new position, honoring the global position cap,
// the sector exposure cap, and available cash.
func (r *run) tryEnter(t tick, sig domain.Signal, snap domain.IndicatorSnapshot, set engine.DecisionSet) error {
	equity := r.portfolio.Equity(r.marks)
	atr := snap.Values[indicator.ValueATR]
	order := set.Sizer.Size(equity, t.bar.Close, atr, sig.Direction)
	if order.Quantity == 0 {
		return nil
	}

	notional := order.Quantity * t.bar.Close
	if err := r.e.limits.CheckEntry(r.portfolio, r.marks, t.symbol, notional); err != nil {
		return nil // a blocked entry is a skip, not a failure
	}

	if order.Quantity < 0 {
		return &domain.SimulationInvariantError{Symbol: t.symbol, BarAt: t.at, Reason: "negative quantity from sizer"}
	}

	best := t.bar.Close
	r.portfolio.Cash -= notional
	r.portfolio.Positions[t.symbol] = &domain.Position{
		Symbol:        t.symbol,
		Direction:     sig.Direction,
		EntryTime:     t.at,
		EntryPrice:    t.bar.Close,
		Quantity:      order.Quantity,
		StopPrice:     order.StopPrice,
		TakeProfit:    order.TakeProfit,
		TrailDistance: order.TrailDistance,
		BestPrice:     best,
	}
	return nil
}

// closePosition fills the exit, releases cash, and appends the trade record.
func (r *run) closePosition(symbol string, at time.Time, fill float64, reason domain.ExitReason) error {
	pos := r.portfolio.Positions[symbol]
	if pos == nil {
		return nil
	}
	if pos.Quantity <= 0 {
		return &domain.SimulationInvariantError{Symbol: symbol, BarAt: at, Reason: "non-positive quantity on close"}
	}

	var pnl float64
	switch pos.Direction {
	case domain.DirectionLong:
		pnl = (fill - pos.EntryPrice) * pos.Quantity
		r.portfolio.Cash += pos.Quantity * fill
	case domain.DirectionShort:
		pnl = (pos.EntryPrice - fill) * pos.Quantity
		r.portfolio.Cash += pos.Quantity * (2*pos.EntryPrice - fill)
	}

	if r.portfolio.Cash < 0 || math.IsNaN(r.portfolio.Cash) {
		return &domain.SimulationInvariantError{Symbol: symbol, BarAt: at, Reason: "cash underflow on close"}
	}

	delete(r.portfolio.Positions, symbol)
	r.trades = append(r.trades, domain.ClosedTrade{
		Symbol:     symbol,
		Direction:  pos.Direction,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		Quantity:   pos.Quantity,
		PnL:        pnl,
		PnLPct:     pnl / (pos.EntryPrice * pos.Quantity),
		ExitReason: reason,
	})
	return nil
}

// fail records a fatal per-symbol error, liquidates the symbol's position at
// the last mark, and removes the symbol from the rest of the run. Other
// symbols are unaffected.
func (r *run) fail(symbol string, t tick, err error) {
	r.e.log.Error("symbol simulation aborted", "symbol", symbol, "at", t.at, "err", err)
	r.failures[symbol] = err
	r.states[symbol].failed = true
	if pos := r.portfolio.Positions[symbol]; pos != nil {
		mark, ok := r.marks[symbol]
		if !ok {
			mark = pos.EntryPrice
		}
		switch pos.Direction {
		case domain.DirectionLong:
			r.portfolio.Cash += pos.Quantity * mark
		case domain.DirectionShort:
			r.portfolio.Cash += pos.Quantity * (2*pos.EntryPrice - mark)
		}
		delete(r.portfolio.Positions, symbol)
	}
}

// recordEquity appends one equity-curve sample and updates the peak.
func (r *run) recordEquity(at time.Time) {
	equity := r.portfolio.Equity(r.marks)
	r.portfolio.EquityCurve = append(r.portfolio.EquityCurve, domain.EquityPoint{Time: at, Equity: equity})
	if equity > r.peak {
		r.peak = equity
	}
}
