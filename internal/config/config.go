// Package config loads and validates the engine configuration from YAML,
// applies defaults and environment overrides, and rejects invalid
// combinations before any bar is processed.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration.
type Config struct {
	Logging  Logging  `yaml:"logging"`
	Storage  Storage  `yaml:"storage"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Engine   Engine   `yaml:"engine"`
	Live     Live     `yaml:"live"`
	Backtest Backtest `yaml:"backtest"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir" default:"data"`
	SQLitePath string `yaml:"sqlite_path" default:"marketpulse.db"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`

	// TradingURL is the trading API endpoint; point it at the paper
	// endpoint unless real orders are intended.
	TradingURL string `yaml:"trading_url" default:"https://paper-api.alpaca.markets"`
}

// Engine groups the decision-core parameters.
type Engine struct {
	Symbols    []string `yaml:"symbols" validate:"min=1"`
	Benchmark  string   `yaml:"benchmark"`
	Timeframes []string `yaml:"timeframes" validate:"min=1"`

	// RegimeTimeframe is the higher timeframe the regime detector watches.
	// It must be one of Timeframes; empty defaults to the coarsest.
	RegimeTimeframe string `yaml:"regime_timeframe"`

	Indicators IndicatorPeriods `yaml:"indicators"`
	Regime     Regime           `yaml:"regime"`
	Risk       Risk             `yaml:"risk"`
	Sizing     Sizing           `yaml:"sizing"`

	// RegimeParams overrides selected decision parameters per regime state
	// ("bullish", "bearish", "ranging"). Zero-valued fields inherit the
	// base configuration.
	RegimeParams map[string]RegimeParams `yaml:"regime_params"`

	// SectorMap assigns symbols to sectors for the exposure cap. Optional;
	// unmapped symbols count as their own sector.
	SectorMap         map[string]string `yaml:"sector_map"`
	SectorExposureCap float64           `yaml:"sector_exposure_cap" default:"0.3" validate:"gt=0,lte=1"`

	MaxOpenPositions int `yaml:"max_open_positions" default:"5" validate:"gte=1"`
}

// IndicatorPeriods sets the indicator lookback windows.
type IndicatorPeriods struct {
	FastMA        int `yaml:"fast_ma" default:"9" validate:"gte=2"`
	SlowMA        int `yaml:"slow_ma" default:"21" validate:"gte=2"`
	LongMA        int `yaml:"long_ma" default:"50" validate:"gte=2"`
	ADX           int `yaml:"adx" default:"14" validate:"gte=2"`
	MACDFast      int `yaml:"macd_fast" default:"12" validate:"gte=2"`
	MACDSlow      int `yaml:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal    int `yaml:"macd_signal" default:"9" validate:"gte=1"`
	ATR           int `yaml:"atr" default:"14" validate:"gte=2"`
	VolumeWindow  int `yaml:"volume_window" default:"20" validate:"gte=2"`
	RSI           int `yaml:"rsi" default:"14" validate:"gte=2"`
	SwingLookback int `yaml:"swing_lookback" default:"20" validate:"gte=2"`
}

// Regime configures the regime detector.
type Regime struct {
	ADXThreshold float64 `yaml:"adx_threshold" default:"25" validate:"gt=0"`
	HysteresisK  int     `yaml:"hysteresis_k" default:"2" validate:"gte=1"`
}

// RegimeParams are the per-regime overrides of the decision parameters.
type RegimeParams struct {
	FastMA        int     `yaml:"fast_ma"`
	SlowMA        int     `yaml:"slow_ma"`
	MinVolumeZ    float64 `yaml:"min_volume_z"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	StopATR       float64 `yaml:"stop_atr"`
	TakeProfitATR float64 `yaml:"take_profit_atr"`
}

// Risk configures the risk scorer and the gates fed by it.
type Risk struct {
	// Weights maps metric names to their share of the composite score.
	// They must be non-negative and sum to 1.
	Weights map[string]float64 `yaml:"weights"`

	MaxScore            float64 `yaml:"max_score" default:"70" validate:"gte=0,lte=100"`
	CorrelationCap      float64 `yaml:"correlation_cap" default:"0.8" validate:"gt=0,lte=1"`
	CorrelationWindow   int     `yaml:"correlation_window" default:"30" validate:"gte=5"`
	RelStrengthLookback int     `yaml:"rel_strength_lookback" default:"20" validate:"gte=2"`

	MinVolumeZ    float64 `yaml:"min_volume_z" default:"0"`
	RSIOverbought float64 `yaml:"rsi_overbought" default:"70" validate:"gt=0,lte=100"`
	RSIOversold   float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lt=100"`
}

// Sizing configures the position sizer.
type Sizing struct {
	RiskPerTrade        float64 `yaml:"risk_per_trade" default:"0.01" validate:"gt=0,lte=0.1"`
	MaxPositionFraction float64 `yaml:"max_position_fraction" default:"0.2" validate:"gt=0,lte=1"`
	StopATR             float64 `yaml:"stop_atr" default:"2" validate:"gt=0"`
	TakeProfitATR       float64 `yaml:"take_profit_atr" default:"3" validate:"gt=0"`
	TrailATR            float64 `yaml:"trail_atr" default:"2.5" validate:"gte=0"`
	Increment           float64 `yaml:"increment" default:"1" validate:"gt=0"`
	MinQuantity         float64 `yaml:"min_quantity" default:"1" validate:"gt=0"`
}

// Backtest configures the simulator.
type Backtest struct {
	InitialCash    float64 `yaml:"initial_cash" default:"100000" validate:"gt=0"`
	MaxHoldingBars int     `yaml:"max_holding_bars" default:"0" validate:"gte=0"`
	BarsPerYear    float64 `yaml:"bars_per_year" default:"252" validate:"gt=0"`
	Workers        int     `yaml:"workers" default:"1" validate:"gte=1"`
}

// Live configures the polling loop.
type Live struct {
	PollInterval string  `yaml:"poll_interval" default:"1m"`
	MetricsAddr  string  `yaml:"metrics_addr" default:":9100"`
	APIAddr      string  `yaml:"api_addr" default:":8080"`
	Broker       string  `yaml:"broker" default:"paper" validate:"oneof=paper alpaca"`
	Equity       float64 `yaml:"equity" default:"100000" validate:"gt=0"`
	Lookback     int     `yaml:"lookback" default:"300" validate:"gte=50"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML file at path, fills defaults, applies environment
// overrides, and validates. Nothing runs on a bad configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if cfg.Engine.Risk.Weights == nil {
		cfg.Engine.Risk.Weights = DefaultRiskWeights()
	}
	if cfg.Engine.RegimeTimeframe == "" && len(cfg.Engine.Timeframes) > 0 {
		cfg.Engine.RegimeTimeframe = cfg.Engine.Timeframes[len(cfg.Engine.Timeframes)-1]
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a fully defaulted configuration for the given symbols and
// timeframes, bypassing YAML. Used by tests and embedding callers.
func Default(symbols []string, timeframes []string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	cfg.Engine.Symbols = symbols
	cfg.Engine.Timeframes = timeframes
	if len(timeframes) > 0 {
		cfg.Engine.RegimeTimeframe = timeframes[len(timeframes)-1]
	}
	cfg.Engine.Risk.Weights = DefaultRiskWeights()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultRiskWeights is the documented default split of the composite risk
// score.
func DefaultRiskWeights() map[string]float64 {
	return map[string]float64{
		"volatility":                0.20,
		"correlation":               0.15,
		"regime_confidence_inverse": 0.15,
		"relative_strength":         0.15,
		"swing_distance":            0.15,
		"drawdown":                  0.20,
	}
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding fields when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Canonical Alpaca env vars take highest priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
