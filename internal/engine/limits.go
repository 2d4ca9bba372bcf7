package engine

import (
	"fmt"

	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/relstrength"
)

// Limits enforces portfolio-level pre-trade rules: the open position cap, the
// cash constraint, and the per-sector exposure cap.
type Limits struct {
	maxOpenPositions int
	sectorCap        float64
	sectors          relstrength.SectorMap
}

// NewLimits builds the entry limits from configuration.
func NewLimits(cfg *config.Config) *Limits {
	return &Limits{
		maxOpenPositions: cfg.Engine.MaxOpenPositions,
		sectorCap:        cfg.Engine.SectorExposureCap,
		sectors:          relstrength.SectorMap(cfg.Engine.SectorMap),
	}
}

// CheckEntry reports whether a new position of the given notional in symbol
// may be opened against the current portfolio. A non-nil error names the
// limit that blocked the entry; callers treat it as a skip, not a failure.
func (l *Limits) CheckEntry(portfolio *domain.PortfolioState, marks map[string]float64, symbol string, notional float64) error {
	if len(portfolio.Positions) >= l.maxOpenPositions {
		return fmt.Errorf("open position cap %d reached", l.maxOpenPositions)
	}
	if notional > portfolio.Cash {
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", notional, portfolio.Cash)
	}
	equity := portfolio.Equity(marks)
	if equity <= 0 {
		return fmt.Errorf("non-positive equity %.2f", equity)
	}
	exposure := relstrength.Exposure(l.sectors, portfolio, marks, equity)
	sector := l.sectors.Sector(symbol)
	if exposure[sector]+notional/equity > l.sectorCap {
		return fmt.Errorf("sector %q exposure cap %.2f exceeded", sector, l.sectorCap)
	}
	return nil
}
