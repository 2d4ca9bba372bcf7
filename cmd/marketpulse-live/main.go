package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/internal/broker"
	"marketpulse/internal/config"
	"marketpulse/internal/feed"
	"marketpulse/internal/httpapi"
	"marketpulse/internal/live"
	"marketpulse/internal/store"
	"marketpulse/internal/util"
)

func main() {
	cfgPath := "config/marketpulse.yaml"
	if p := os.Getenv("MARKETPULSE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}
	defer db.Close()

	var brk broker.Broker
	switch cfg.Live.Broker {
	case "alpaca":
		brk = broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.TradingURL)
	default:
		brk = broker.NewPaperBroker()
	}

	reg := prometheus.NewRegistry()
	f := feed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	loop, err := live.NewLoop(cfg, f, brk, db, reg)
	if err != nil {
		log.Fatalf("failed to build live loop: %v", err)
	}

	if addr := cfg.Live.MetricsAddr; addr != "" {
		go func() {
			if err := live.ServeMetrics(addr, reg, slog.Default()); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}
	if addr := cfg.Live.APIAddr; addr != "" {
		api := httpapi.NewServer(cfg, db, db)
		go func() {
			slog.Info("serving http api", "addr", addr)
			if err := http.ListenAndServe(addr, api.Handler()); err != nil {
				slog.Error("http api stopped", "err", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting live loop", "broker", brk.Name())
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("live loop error: %v", err)
	}
}
