package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker routes orders to the Alpaca trading API. Point baseURL at the
// paper endpoint for paper trading with real order plumbing.
type AlpacaBroker struct {
	client *alpaca.Client
}

// NewAlpacaBroker creates an AlpacaBroker. baseURL may be empty to use the
// SDK default.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &AlpacaBroker{client: alpaca.NewClient(opts)}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string { return "alpaca" }

// SubmitEntry places a bracket market order carrying the stop and, when set,
// the take profit.
func (b *AlpacaBroker) SubmitEntry(_ context.Context, order Order) (Fill, error) {
	side := alpaca.Buy
	if order.Direction == domain.DirectionShort {
		side = alpaca.Sell
	}
	qty := decimal.NewFromFloat(order.Quantity)

	req := alpaca.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	}
	if order.StopPrice > 0 {
		stop := decimal.NewFromFloat(order.StopPrice)
		req.StopLoss = &alpaca.StopLoss{StopPrice: &stop}
		req.OrderClass = alpaca.Bracket
		if order.TakeProfit > 0 {
			tp := decimal.NewFromFloat(order.TakeProfit)
			req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
		}
	}

	placed, err := b.client.PlaceOrder(req)
	if err != nil {
		return Fill{}, fmt.Errorf("place order %s: %w", order.Symbol, err)
	}
	return fillFromOrder(placed, order.Quantity, order.ReferencePrice), nil
}

// SubmitExit places a market order on the opposite side of the position.
func (b *AlpacaBroker) SubmitExit(_ context.Context, pos *domain.Position, referencePrice float64) (Fill, error) {
	side := alpaca.Sell
	if pos.Direction == domain.DirectionShort {
		side = alpaca.Buy
	}
	qty := decimal.NewFromFloat(pos.Quantity)

	placed, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      pos.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return Fill{}, fmt.Errorf("close %s: %w", pos.Symbol, err)
	}
	return fillFromOrder(placed, pos.Quantity, referencePrice), nil
}

// fillFromOrder reports the fill price when the order filled synchronously
// and falls back to the reference price for resting orders.
func fillFromOrder(o *alpaca.Order, qty, referencePrice float64) Fill {
	price := referencePrice
	if o.FilledAvgPrice != nil {
		price, _ = o.FilledAvgPrice.Float64()
	}
	at := time.Now().UTC()
	if o.FilledAt != nil {
		at = o.FilledAt.UTC()
	}
	return Fill{Symbol: o.Symbol, Quantity: qty, Price: price, At: at}
}
