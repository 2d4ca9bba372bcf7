package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"marketpulse/internal/config"
	"marketpulse/internal/store"
)

// Server serves signal and trade history over HTTP.
type Server struct {
	cfg       *config.Config
	signals   store.SignalLog
	trades    store.TradeLog
	startedAt time.Time
	log       *slog.Logger
}

// NewServer creates a Server reading from the given logs.
func NewServer(cfg *config.Config, signals store.SignalLog, trades store.TradeLog) *Server {
	return &Server{
		cfg:       cfg,
		signals:   signals,
		trades:    trades,
		startedAt: time.Now().UTC(),
		log:       slog.Default().With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/signals/{symbol}", s.handleSignals)
	mux.HandleFunc("GET /api/trades/{symbol}", s.handleTrades)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StatusJSON{
		Symbols:    s.cfg.Engine.Symbols,
		Timeframes: s.cfg.Engine.Timeframes,
		StartedAt:  s.startedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	sigs, err := s.signals.ListSignals(r.Context(), symbol, limit)
	if err != nil {
		s.log.Error("listing signals", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	out := make([]SignalJSON, len(sigs))
	for i, sig := range sigs {
		out[i] = signalJSON(sig)
	}
	writeJSON(w, out)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	trades, err := s.trades.ListTrades(r.Context(), symbol)
	if err != nil {
		s.log.Error("listing trades", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	out := make([]TradeJSON, len(trades))
	for i, t := range trades {
		out[i] = tradeJSON(t)
	}
	writeJSON(w, out)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
