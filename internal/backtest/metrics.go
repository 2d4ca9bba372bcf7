package backtest

import (
	"math"

	"marketpulse/internal/domain"
)

// Metrics holds the summary statistics of a backtest run.
type Metrics struct {
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	TotalTrades  int
	GrossProfit  float64
	GrossLoss    float64
}

// ComputeMetrics derives the summary statistics from a trade log and an
// equity curve. barsPerYear annualizes the Sharpe ratio. ProfitFactor is
// +Inf when there are profits but no losses, and 0 with no trades.
func ComputeMetrics(trades []domain.ClosedTrade, curve []domain.EquityPoint, barsPerYear, initialCash float64) Metrics {
	var m Metrics
	m.TotalTrades = len(trades)

	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			m.GrossProfit += t.PnL
		} else {
			m.GrossLoss += -t.PnL
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(wins) / float64(m.TotalTrades)
	}
	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	case m.GrossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}

	if len(curve) > 0 && initialCash > 0 {
		m.TotalReturn = curve[len(curve)-1].Equity/initialCash - 1
	}

	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio = sharpe(curve, barsPerYear)
	return m
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// fraction of the peak.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe returns the annualized ratio of mean bar-over-bar return to its
// standard deviation. Zero when there is no variance or not enough points.
func sharpe(curve []domain.EquityPoint, barsPerYear float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			return 0
		}
		rets = append(rets, curve[i].Equity/prev-1)
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(barsPerYear)
}
