package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/feed"
	"marketpulse/internal/store"
	"marketpulse/internal/util"
)

func main() {
	startStr := flag.String("start", "", "start date (YYYY-MM-DD), required")
	endStr := flag.String("end", "", "end date (YYYY-MM-DD), defaults to today")
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

	if *startStr == "" {
		log.Fatal("-start is required")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	end := time.Now().UTC()
	if *endStr != "" {
		if end, err = time.Parse("2006-01-02", *endStr); err != nil {
			log.Fatalf("bad -end: %v", err)
		}
		end = end.AddDate(0, 0, 1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	f := feed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	ps := store.NewParquetStore(cfg.Storage.DataDir)

	symbols := append([]string(nil), cfg.Engine.Symbols...)
	if b := cfg.Engine.Benchmark; b != "" {
		symbols = append(symbols, b)
	}

	for _, tfs := range cfg.Engine.Timeframes {
		tf := domain.Timeframe(tfs)
		bars, err := f.FetchBars(ctx, symbols, tf, start, end)
		if err != nil {
			log.Fatalf("fetch %s bars: %v", tf, err)
		}
		if err := ps.WriteBars(ctx, bars); err != nil {
			log.Fatalf("write %s bars: %v", tf, err)
		}
		slog.Info("fetched", "timeframe", tf, "bars", len(bars), "symbols", len(symbols))
	}
}
