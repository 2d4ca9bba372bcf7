// Package broker defines the execution interface used by the live loop and
// provides a paper implementation plus one backed by the Alpaca trading API.
package broker

import (
	"context"
	"time"

	"marketpulse/internal/domain"
)

// Order is an entry request produced by the position sizer.
type Order struct {
	Symbol    string
	Direction domain.Direction // DirectionLong or DirectionShort
	Quantity  float64

	// ReferencePrice is the close of the bar that triggered the order.
	// Paper fills use it directly; live fills may deviate.
	ReferencePrice float64

	StopPrice  float64
	TakeProfit float64
}

// Fill reports the executed price and time of an accepted order.
type Fill struct {
	Symbol   string
	Quantity float64
	Price    float64
	At       time.Time
}

// Broker abstracts order execution.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "paper").
	Name() string

	// SubmitEntry opens a position.
	SubmitEntry(ctx context.Context, order Order) (Fill, error)

	// SubmitExit closes the given position at the reference price or better.
	SubmitExit(ctx context.Context, pos *domain.Position, referencePrice float64) (Fill, error)
}
