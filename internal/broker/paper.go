package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketpulse/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*PaperBroker)(nil)

// PaperBroker fills every order immediately at its reference price without
// touching any external API.
type PaperBroker struct {
	log *slog.Logger
}

// NewPaperBroker creates a PaperBroker.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{log: slog.Default().With("broker", "paper")}
}

// Name returns "paper".
func (b *PaperBroker) Name() string { return "paper" }

// SubmitEntry fills at the reference price.
func (b *PaperBroker) SubmitEntry(_ context.Context, order Order) (Fill, error) {
	if order.Quantity <= 0 {
		return Fill{}, fmt.Errorf("non-positive quantity %v for %s", order.Quantity, order.Symbol)
	}
	b.log.Info("paper fill",
		"symbol", order.Symbol,
		"direction", order.Direction,
		"qty", order.Quantity,
		"price", order.ReferencePrice)
	return Fill{
		Symbol:   order.Symbol,
		Quantity: order.Quantity,
		Price:    order.ReferencePrice,
		At:       time.Now().UTC(),
	}, nil
}

// SubmitExit fills at the reference price.
func (b *PaperBroker) SubmitExit(_ context.Context, pos *domain.Position, referencePrice float64) (Fill, error) {
	b.log.Info("paper close",
		"symbol", pos.Symbol,
		"direction", pos.Direction,
		"qty", pos.Quantity,
		"price", referencePrice)
	return Fill{
		Symbol:   pos.Symbol,
		Quantity: pos.Quantity,
		Price:    referencePrice,
		At:       time.Now().UTC(),
	}, nil
}
