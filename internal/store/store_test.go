package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marketpulse/internal/domain"
)

func hourBar(symbol string, openTime time.Time, close float64) domain.Bar {
	return domain.Bar{
		Symbol: symbol, Timeframe: "1h", OpenTime: openTime,
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 1000,
	}
}

func TestParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	t0 := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	bars := []domain.Bar{
		hourBar("AAPL", t0, 100),
		hourBar("AAPL", t0.Add(time.Hour), 101),
		hourBar("MSFT", t0, 200),
	}
	if err := s.WriteBars(ctx, bars); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "AAPL", "1h", t0, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d bars, want 2", len(got))
	}
	if got[0].Close != 100 || got[1].Close != 101 {
		t.Errorf("closes = %v, %v, want 100, 101", got[0].Close, got[1].Close)
	}
	if !got[0].OpenTime.Equal(t0) {
		t.Errorf("open time = %v, want %v", got[0].OpenTime, t0)
	}

	symbols, err := s.ListSymbols(ctx, "1h")
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("symbols = %v, want [AAPL MSFT]", symbols)
	}
}

func TestParquetMergeDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	t0 := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	if err := s.WriteBars(ctx, []domain.Bar{hourBar("AAPL", t0, 100)}); err != nil {
		t.Fatal(err)
	}
	// Rewriting the same open time replaces the record; a later bar appends.
	if err := s.WriteBars(ctx, []domain.Bar{
		hourBar("AAPL", t0, 100.5),
		hourBar("AAPL", t0.Add(time.Hour), 101),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "AAPL", "1h", t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d bars, want 2", len(got))
	}
	if got[0].Close != 100.5 {
		t.Errorf("close = %v, want incoming record 100.5", got[0].Close)
	}
}

func TestParquetReadRangeFilters(t *testing.T) {
	ctx := context.Background()
	s := NewParquetStore(t.TempDir())
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var bars []domain.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, hourBar("AAPL", t0.Add(time.Duration(i)*time.Hour), 100+float64(i)))
	}
	if err := s.WriteBars(ctx, bars); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "AAPL", "1h", t0.Add(time.Hour), t0.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("read %d bars in range, want 3", len(got))
	}

	// Missing symbol reads empty, not an error.
	got, err = s.ReadBars(ctx, "NONE", "1h", t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("missing symbol returned %d bars", len(got))
	}
}

func TestSQLiteTradeLog(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	t0 := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	trades := []domain.ClosedTrade{
		{
			Symbol: "AAPL", Direction: domain.DirectionLong,
			EntryTime: t0, ExitTime: t0.Add(4 * time.Hour),
			EntryPrice: 100, ExitPrice: 106, Quantity: 10,
			PnL: 60, PnLPct: 0.06, ExitReason: domain.ExitTakeProfit,
		},
		{
			Symbol: "MSFT", Direction: domain.DirectionShort,
			EntryTime: t0, ExitTime: t0.Add(2 * time.Hour),
			EntryPrice: 200, ExitPrice: 204, Quantity: 5,
			PnL: -20, PnLPct: -0.02, ExitReason: domain.ExitStopLoss,
		},
	}
	if err := s.AppendTrades(ctx, trades); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTrades(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("trades for AAPL = %d, want 1", len(got))
	}
	want := trades[0]
	if got[0].Symbol != want.Symbol || got[0].Direction != want.Direction ||
		got[0].EntryPrice != want.EntryPrice || got[0].ExitPrice != want.ExitPrice ||
		got[0].Quantity != want.Quantity || got[0].PnL != want.PnL ||
		got[0].ExitReason != want.ExitReason {
		t.Errorf("round trip: got %+v, want %+v", got[0], want)
	}
	if !got[0].EntryTime.Equal(want.EntryTime) || !got[0].ExitTime.Equal(want.ExitTime) {
		t.Errorf("round trip times: got %v/%v, want %v/%v",
			got[0].EntryTime, got[0].ExitTime, want.EntryTime, want.ExitTime)
	}

	// Empty symbol lists everything, ordered by exit time.
	all, err := s.ListTrades(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all trades = %d, want 2", len(all))
	}
	if all[0].Symbol != "MSFT" {
		t.Errorf("first by exit time = %q, want MSFT", all[0].Symbol)
	}
}

func TestSQLiteSignalLog(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	t0 := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sig := domain.Signal{
			Symbol: "AAPL", Direction: domain.DirectionLong,
			AsOf: t0.Add(time.Duration(i) * time.Hour), Confidence: 0.5, RiskScore: 30,
		}
		if err := s.AppendSignal(ctx, sig); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSignals(ctx, "AAPL", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("signals = %d, want limit 2", len(got))
	}
	// Newest first.
	if !got[0].AsOf.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("first signal as_of = %v, want newest %v", got[0].AsOf, t0.Add(2*time.Hour))
	}

	none, err := s.ListSignals(ctx, "XYZ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("unknown symbol returned %d signals", len(none))
	}
}
