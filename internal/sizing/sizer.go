// Package sizing converts account equity, a per-trade risk budget, and an
// ATR-derived stop distance into an order quantity with stop and target
// prices attached.
package sizing

import (
	"math"

	"marketpulse/internal/domain"
)

// Config holds the sizing parameters.
type Config struct {
	// RiskPerTrade is the fraction of equity risked between entry and stop
	// (e.g. 0.01 for 1%).
	RiskPerTrade float64

	// MaxPositionFraction caps the position notional at this fraction of
	// equity regardless of stop distance, bounding worst-case gap risk.
	MaxPositionFraction float64

	// StopATR, TakeProfitATR, and TrailATR are ATR multipliers for the
	// stop-loss distance, take-profit distance, and trailing-stop distance.
	StopATR       float64
	TakeProfitATR float64
	TrailATR      float64

	// Increment is the minimum tradable quantity step; quantities are
	// floored to a multiple of it. MinQuantity is the smallest quantity the
	// instrument accepts; anything below it sizes to zero.
	Increment   float64
	MinQuantity float64
}

// Order is a sized order request: quantity plus the protective prices the
// position will carry.
type Order struct {
	Quantity      float64
	StopPrice     float64
	TakeProfit    float64
	TrailDistance float64
}

// Sizer computes order sizes. It is pure: the same inputs always produce
// the same order.
type Sizer struct {
	cfg Config
}

// NewSizer creates a Sizer with the given parameters.
func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the order for entering dir at entryPrice with the given
// equity and ATR. A zero-quantity order means no trade: invalid inputs, a
// degenerate stop distance, or a computed quantity below the instrument
// minimum all size to zero — the sizer never rounds up through the minimum.
func (s *Sizer) Size(equity, entryPrice, atr float64, dir domain.Direction) Order {
	if equity <= 0 || entryPrice <= 0 || math.IsNaN(atr) || atr <= 0 {
		return Order{}
	}

	stopDistance := atr * s.cfg.StopATR
	if stopDistance <= 0 {
		return Order{}
	}

	qty := equity * s.cfg.RiskPerTrade / stopDistance

	// Hard notional cap, independent of stop distance.
	maxNotional := equity * s.cfg.MaxPositionFraction
	if qty*entryPrice > maxNotional {
		qty = maxNotional / entryPrice
	}

	qty = s.floorToIncrement(qty)
	if qty < s.cfg.MinQuantity || qty <= 0 {
		return Order{}
	}

	order := Order{
		Quantity:      qty,
		TrailDistance: atr * s.cfg.TrailATR,
	}
	switch dir {
	case domain.DirectionLong:
		order.StopPrice = entryPrice - stopDistance
		order.TakeProfit = entryPrice + atr*s.cfg.TakeProfitATR
	case domain.DirectionShort:
		order.StopPrice = entryPrice + stopDistance
		order.TakeProfit = entryPrice - atr*s.cfg.TakeProfitATR
	default:
		return Order{}
	}
	return order
}

func (s *Sizer) floorToIncrement(qty float64) float64 {
	if s.cfg.Increment <= 0 {
		return qty
	}
	return math.Floor(qty/s.cfg.Increment) * s.cfg.Increment
}
