package backtest

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/series"
)

// SymbolResult pairs a symbol with its independent backtest outcome.
type SymbolResult struct {
	Symbol string
	Result *Result
	Err    error
}

// RunParallel backtests each symbol as an independent unit of work with its
// own portfolio, fanning out across the configured number of workers, and
// returns the per-symbol results ordered by symbol. Nothing mutable is
// shared between workers: each worker's run owns its portfolio, and the
// shared bar store is only ever read. Cancelling ctx stops scheduling
// further symbols; in-flight symbols run to completion.
func (e *Engine) RunParallel(ctx context.Context, store *series.Store, symbols []string) []SymbolResult {
	workers := e.cfg.Backtest.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make([]SymbolResult, 0, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				res, err := e.Run(store, []string{sym})
				mu.Lock()
				results = append(results, SymbolResult{Symbol: sym, Result: res, Err: err})
				mu.Unlock()
			}
		}()
	}

	for _, sym := range symbols {
		select {
		case <-ctx.Done():
		case jobs <- sym:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })
	return results
}
