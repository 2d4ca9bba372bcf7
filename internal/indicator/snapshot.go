package indicator

import (
	"marketpulse/internal/domain"
)

// Value names used in IndicatorSnapshot.Values.
const (
	ValueFastMA    = "fast_ma"
	ValueSlowMA    = "slow_ma"
	ValueLongMA    = "long_ma"
	ValueADX       = "adx"
	ValueMACDHist  = "macd_hist"
	ValueATR       = "atr"
	ValueVolumeZ   = "volume_z"
	ValueRSI       = "rsi"
	ValueSwingHigh = "swing_high"
	ValueSwingLow  = "swing_low"
	ValueClose     = "close"
)

// Params selects the lookback windows used when building a snapshot.
type Params struct {
	FastMAPeriod  int
	SlowMAPeriod  int
	LongMAPeriod  int
	ADXPeriod     int
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	ATRPeriod     int
	VolumeWindow  int
	RSIPeriod     int
	SwingLookback int
}

// DefaultParams returns the standard lookback windows.
func DefaultParams() Params {
	return Params{
		FastMAPeriod:  9,
		SlowMAPeriod:  21,
		LongMAPeriod:  50,
		ADXPeriod:     14,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		ATRPeriod:     14,
		VolumeWindow:  20,
		RSIPeriod:     14,
		SwingLookback: 20,
	}
}

// Snapshot computes every indicator for the given bars as of the last bar.
// Bars must be the closed bars of one (symbol, timeframe) series in time
// order; the snapshot never references anything beyond the last bar.
// Indicators without enough warm-up data are present in Values as NaN.
func Snapshot(symbol string, tf domain.Timeframe, bars []domain.Bar, p Params) domain.IndicatorSnapshot {
	snap := domain.IndicatorSnapshot{
		Symbol:    symbol,
		Timeframe: tf,
		Values:    make(map[string]float64, 11),
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		snap.AsOf = last.OpenTime.Add(tf.Duration())
		snap.Values[ValueClose] = last.Close
	}

	snap.Values[ValueFastMA] = EMA(bars, p.FastMAPeriod)
	snap.Values[ValueSlowMA] = EMA(bars, p.SlowMAPeriod)
	snap.Values[ValueLongMA] = EMA(bars, p.LongMAPeriod)
	snap.Values[ValueADX] = ADX(bars, p.ADXPeriod)
	snap.Values[ValueMACDHist] = MACDHistogram(bars, p.MACDFast, p.MACDSlow, p.MACDSignal)
	snap.Values[ValueATR] = ATR(bars, p.ATRPeriod)
	snap.Values[ValueVolumeZ] = VolumeZScore(bars, p.VolumeWindow)
	snap.Values[ValueRSI] = RSI(bars, p.RSIPeriod)
	snap.Values[ValueSwingHigh] = SwingHigh(bars, p.SwingLookback)
	snap.Values[ValueSwingLow] = SwingLow(bars, p.SwingLookback)
	return snap
}
