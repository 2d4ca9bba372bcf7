package risk

import (
	"math"

	"marketpulse/internal/indicator"
)

// Built-in metric names accepted in the risk-weights configuration.
const (
	MetricVolatility      = "volatility"
	MetricCorrelation     = "correlation"
	MetricRegimeInverse   = "regime_confidence_inverse"
	MetricRelStrength     = "relative_strength"
	MetricSwingDistance   = "swing_distance"
	MetricDrawdown        = "drawdown"
	MetricMomentumExtreme = "momentum_extreme"
	MetricTrendWeakness   = "trend_weakness"
	MetricVolumeAnomaly   = "volume_anomaly"
)

// Normalization references. Inputs at or beyond these map to the worst
// value (100) for their metric.
const (
	volatilityRefPct = 5.0  // ATR as % of price
	drawdownRef      = 0.20 // fraction of equity lost from peak
	adxRef           = 50.0
	volumeZRef       = 4.0
)

// Builtins returns the full set of built-in metric functions keyed by name.
// Every metric maps its input to [0, 100] with 100 the riskiest, and falls
// back to a neutral 50 when its input is unavailable.
func Builtins() map[string]Metric {
	return map[string]Metric{
		MetricVolatility:      volatilityMetric,
		MetricCorrelation:     correlationMetric,
		MetricRegimeInverse:   regimeInverseMetric,
		MetricRelStrength:     relStrengthMetric,
		MetricSwingDistance:   swingDistanceMetric,
		MetricDrawdown:        drawdownMetric,
		MetricMomentumExtreme: momentumMetric,
		MetricTrendWeakness:   trendWeaknessMetric,
		MetricVolumeAnomaly:   volumeAnomalyMetric,
	}
}

// volatilityMetric: ATR as a percentage of price, scaled so that
// volatilityRefPct or more maps to 100.
func volatilityMetric(in Inputs) float64 {
	atr := in.Snapshot.Values[indicator.ValueATR]
	close := in.Snapshot.Values[indicator.ValueClose]
	if math.IsNaN(atr) || math.IsNaN(close) || close <= 0 {
		return 50
	}
	return clamp100(atr / close * 100 / volatilityRefPct * 100)
}

// correlationMetric: maximum return correlation against open positions.
// At or above the configured cap the metric is pinned to 100 — the hard
// exposure guard. With no open positions it is 0.
func correlationMetric(in Inputs) float64 {
	if math.IsNaN(in.MaxCorrelation) {
		return 0
	}
	if in.CorrelationCap > 0 && in.MaxCorrelation >= in.CorrelationCap {
		return 100
	}
	c := in.MaxCorrelation
	if c < 0 {
		c = 0
	}
	return clamp100(c * 100)
}

// regimeInverseMetric: low regime confidence is risky.
func regimeInverseMetric(in Inputs) float64 {
	return clamp100((1 - in.Regime.Confidence) * 100)
}

// relStrengthMetric: weak symbols relative to the benchmark are risky.
func relStrengthMetric(in Inputs) float64 {
	if math.IsNaN(in.RelStrengthRank) {
		return 50
	}
	return clamp100((1 - in.RelStrengthRank) * 100)
}

// swingDistanceMetric: entries near either extreme of the recent swing
// range chase the range; the middle of the range is safest.
func swingDistanceMetric(in Inputs) float64 {
	hi := in.Snapshot.Values[indicator.ValueSwingHigh]
	lo := in.Snapshot.Values[indicator.ValueSwingLow]
	close := in.Snapshot.Values[indicator.ValueClose]
	if math.IsNaN(hi) || math.IsNaN(lo) || math.IsNaN(close) || hi <= lo {
		return 50
	}
	pos := (close - lo) / (hi - lo)
	return clamp100(math.Abs(2*pos-1) * 100)
}

// drawdownMetric: current drawdown from the equity peak, scaled so that
// drawdownRef or more maps to 100.
func drawdownMetric(in Inputs) float64 {
	if math.IsNaN(in.DrawdownPct) || in.DrawdownPct < 0 {
		return 0
	}
	return clamp100(in.DrawdownPct / drawdownRef * 100)
}

// momentumMetric: RSI far from the 50 midline signals a stretched move.
func momentumMetric(in Inputs) float64 {
	rsi := in.Snapshot.Values[indicator.ValueRSI]
	if math.IsNaN(rsi) {
		return 50
	}
	return clamp100(math.Abs(rsi-50) / 50 * 100)
}

// trendWeaknessMetric: low ADX means no trend to lean on.
func trendWeaknessMetric(in Inputs) float64 {
	adx := in.Snapshot.Values[indicator.ValueADX]
	if math.IsNaN(adx) {
		return 50
	}
	return clamp100((1 - adx/adxRef) * 100)
}

// volumeAnomalyMetric: extreme volume spikes in either direction.
func volumeAnomalyMetric(in Inputs) float64 {
	z := in.Snapshot.Values[indicator.ValueVolumeZ]
	if math.IsNaN(z) {
		return 50
	}
	return clamp100(math.Abs(z) / volumeZRef * 100)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
