package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketpulse/internal/backtest"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/feed"
	"marketpulse/internal/series"
	"marketpulse/internal/store"
	"marketpulse/internal/util"
)

func main() {
	csvDir := flag.String("csv", "", "load bars from <dir>/<SYMBOL>_<TIMEFRAME>.csv instead of the parquet store")
	startStr := flag.String("start", "", "start date (YYYY-MM-DD), parquet source only")
	endStr := flag.String("end", "", "end date (YYYY-MM-DD), parquet source only")
	parallel := flag.Bool("parallel", false, "run each symbol against its own portfolio")
	saveTrades := flag.Bool("save-trades", false, "persist closed trades to the sqlite store")
	flag.Parse()

	cfgPath := "config/marketpulse.yaml"
	if p := os.Getenv("MARKETPULSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	ctx := context.Background()
	bars, err := loadBars(ctx, cfg, *csvDir, *startStr, *endStr)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}

	st := series.NewStore()
	for _, b := range bars {
		if err := st.Append(b); err != nil {
			log.Fatalf("bad bar %s %s at %s: %v", b.Symbol, b.Timeframe, b.OpenTime, err)
		}
	}

	eng, err := backtest.New(cfg)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	if *parallel {
		for _, r := range eng.RunParallel(ctx, st, cfg.Engine.Symbols) {
			if r.Err != nil {
				fmt.Printf("\n### %s\nfailed: %v\n", r.Symbol, r.Err)
				continue
			}
			fmt.Printf("\n### %s\n%s", r.Symbol, r.Result.Report())
		}
		return
	}

	res, err := eng.Run(st, cfg.Engine.Symbols)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	fmt.Print(res.Report())

	if *saveTrades && len(res.Trades) > 0 {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		defer db.Close()
		if err := db.AppendTrades(ctx, res.Trades); err != nil {
			log.Fatalf("failed to persist trades: %v", err)
		}
		fmt.Printf("saved %d trades to %s\n", len(res.Trades), cfg.Storage.SQLitePath)
	}
}

// loadBars reads every configured (symbol, timeframe) pair from CSV files or
// the parquet store. The benchmark is loaded on the finest timeframe only.
func loadBars(ctx context.Context, cfg *config.Config, csvDir, startStr, endStr string) ([]domain.Bar, error) {
	symbols := append([]string(nil), cfg.Engine.Symbols...)
	if b := cfg.Engine.Benchmark; b != "" {
		symbols = append(symbols, b)
	}

	var all []domain.Bar
	if csvDir != "" {
		for _, sym := range symbols {
			for i, tfs := range cfg.Engine.Timeframes {
				if sym == cfg.Engine.Benchmark && i > 0 && !contains(cfg.Engine.Symbols, sym) {
					break
				}
				name := fmt.Sprintf("%s_%s.csv", sym, strings.ToUpper(tfs))
				bars, err := feed.LoadCSV(filepath.Join(csvDir, name), sym, domain.Timeframe(tfs))
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				all = append(all, bars...)
			}
		}
		return all, nil
	}

	start, end, err := parseRange(startStr, endStr)
	if err != nil {
		return nil, err
	}
	ps := store.NewParquetStore(cfg.Storage.DataDir)
	for _, sym := range symbols {
		for i, tfs := range cfg.Engine.Timeframes {
			if sym == cfg.Engine.Benchmark && i > 0 && !contains(cfg.Engine.Symbols, sym) {
				break
			}
			bars, err := ps.ReadBars(ctx, sym, domain.Timeframe(tfs), start, end)
			if err != nil {
				return nil, fmt.Errorf("read %s %s: %w", sym, tfs, err)
			}
			all = append(all, bars...)
		}
	}
	return all, nil
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()
	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return start, end, fmt.Errorf("bad -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return start, end, fmt.Errorf("bad -end: %w", err)
		}
		end = end.AddDate(0, 0, 1) // inclusive end date
	}
	return start, end, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
