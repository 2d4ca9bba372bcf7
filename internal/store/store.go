// Package store defines storage interfaces for persisting and retrieving
// bars, closed trades, and emitted signals.
package store

import (
	"context"
	"time"

	"marketpulse/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and timeframe within
	// [start, end], ordered by open time.
	ReadBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with data on the timeframe.
	ListSymbols(ctx context.Context, tf domain.Timeframe) ([]string, error)
}

// TradeLog persists the append-only closed-trade history.
type TradeLog interface {
	// AppendTrades records a batch of closed trades.
	AppendTrades(ctx context.Context, trades []domain.ClosedTrade) error

	// ListTrades returns closed trades for a symbol ordered by exit time.
	// An empty symbol returns every trade.
	ListTrades(ctx context.Context, symbol string) ([]domain.ClosedTrade, error)
}

// SignalLog persists emitted signals.
type SignalLog interface {
	// AppendSignal records one emitted signal.
	AppendSignal(ctx context.Context, sig domain.Signal) error

	// ListSignals returns the most recent signals for a symbol, newest
	// first, up to limit.
	ListSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error)
}
