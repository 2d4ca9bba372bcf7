package engine

import (
	"testing"

	"marketpulse/internal/config"
	"marketpulse/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default([]string{"AAPL", "MSFT", "XOM"}, []string{"5m", "1h", "1d"})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestTimeframes(t *testing.T) {
	cfg := testConfig(t)
	tfs := Timeframes(cfg)
	want := []domain.Timeframe{"5m", "1h", "1d"}
	if len(tfs) != len(want) {
		t.Fatalf("len = %d, want %d", len(tfs), len(want))
	}
	for i := range want {
		if tfs[i] != want[i] {
			t.Errorf("tfs[%d] = %q, want %q", i, tfs[i], want[i])
		}
	}
}

func TestBuildSetsCoversAllRegimes(t *testing.T) {
	sets := BuildSets(testConfig(t))
	for _, state := range []domain.RegimeState{domain.RegimeBullish, domain.RegimeBearish, domain.RegimeRanging} {
		set, ok := sets[state]
		if !ok {
			t.Fatalf("no decision set for %q", state)
		}
		if set.Generator == nil || set.Sizer == nil {
			t.Errorf("%q: incomplete decision set %+v", state, set)
		}
	}
}

func TestBuildSetsAppliesRegimeOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.RegimeParams = map[string]config.RegimeParams{
		"bearish": {FastMA: 5, SlowMA: 13, StopATR: 3},
	}
	sets := BuildSets(cfg)

	bear := sets[domain.RegimeBearish]
	if bear.Params.FastMAPeriod != 5 || bear.Params.SlowMAPeriod != 13 {
		t.Errorf("bearish MA periods = %d/%d, want 5/13", bear.Params.FastMAPeriod, bear.Params.SlowMAPeriod)
	}

	// Zero-valued fields inherit the base configuration, and other regimes
	// stay untouched.
	if bear.Params.ATRPeriod != cfg.Engine.Indicators.ATR {
		t.Errorf("bearish ATR period = %d, want base %d", bear.Params.ATRPeriod, cfg.Engine.Indicators.ATR)
	}
	bull := sets[domain.RegimeBullish]
	if bull.Params.FastMAPeriod != cfg.Engine.Indicators.FastMA {
		t.Errorf("bullish fast MA = %d, want base %d", bull.Params.FastMAPeriod, cfg.Engine.Indicators.FastMA)
	}
}

func TestCheckEntryPositionCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.MaxOpenPositions = 1
	l := NewLimits(cfg)

	p := domain.NewPortfolioState(100_000)
	if err := l.CheckEntry(p, nil, "AAPL", 10_000); err != nil {
		t.Fatalf("empty portfolio: %v", err)
	}

	p.Positions["MSFT"] = &domain.Position{Symbol: "MSFT", Direction: domain.DirectionLong, Quantity: 10, EntryPrice: 100}
	if err := l.CheckEntry(p, nil, "AAPL", 10_000); err == nil {
		t.Error("position cap reached, entry should be blocked")
	}
}

func TestCheckEntryCash(t *testing.T) {
	l := NewLimits(testConfig(t))
	p := domain.NewPortfolioState(5_000)
	if err := l.CheckEntry(p, nil, "AAPL", 6_000); err == nil {
		t.Error("notional above cash should be blocked")
	}
	if err := l.CheckEntry(p, nil, "AAPL", 1_000); err != nil {
		t.Errorf("affordable entry blocked: %v", err)
	}
}

func TestCheckEntrySectorCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.SectorMap = map[string]string{"AAPL": "tech", "MSFT": "tech", "XOM": "energy"}
	cfg.Engine.SectorExposureCap = 0.3
	l := NewLimits(cfg)

	p := domain.NewPortfolioState(75_000)
	p.Positions["MSFT"] = &domain.Position{Symbol: "MSFT", Direction: domain.DirectionLong, Quantity: 100, EntryPrice: 250}
	// Equity 100k, tech already at 25%: another 10k of tech busts the 30%
	// cap, but energy is fine.
	if err := l.CheckEntry(p, nil, "AAPL", 10_000); err == nil {
		t.Error("sector cap should block a same-sector entry")
	}
	if err := l.CheckEntry(p, nil, "XOM", 10_000); err != nil {
		t.Errorf("other-sector entry blocked: %v", err)
	}
}
