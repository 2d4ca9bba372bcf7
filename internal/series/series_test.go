package series

import (
	"errors"
	"testing"
	"time"

	"marketpulse/internal/domain"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func bar(symbol string, tf domain.Timeframe, i int, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  t0.Add(time.Duration(i) * tf.Duration()),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
	}
}

func TestAppendAndLast(t *testing.T) {
	s := NewSeries("AAPL", "5m")
	for i := 0; i < 3; i++ {
		if err := s.Append(bar("AAPL", "5m", i, 100+float64(i))); err != nil {
			t.Fatalf("Append bar %d: %v", i, err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	last, ok := s.Last()
	if !ok || last.Close != 102 {
		t.Errorf("Last() = %v, %v; want close 102", last.Close, ok)
	}
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := NewSeries("AAPL", "5m")
	if err := s.Append(bar("AAPL", "5m", 1, 100)); err != nil {
		t.Fatal(err)
	}

	var dataErr *domain.DataError
	err := s.Append(bar("AAPL", "5m", 0, 99))
	if !errors.As(err, &dataErr) {
		t.Fatalf("out-of-order append: got %v, want *domain.DataError", err)
	}

	// Duplicate open time is also rejected.
	if err := s.Append(bar("AAPL", "5m", 1, 101)); err == nil {
		t.Error("duplicate open time should be rejected")
	}
	if s.Len() != 1 {
		t.Errorf("failed appends must not mutate the series, Len() = %d", s.Len())
	}
}

func TestAppendRejectsBadBar(t *testing.T) {
	s := NewSeries("AAPL", "5m")

	wrong := bar("MSFT", "5m", 0, 100)
	if err := s.Append(wrong); err == nil {
		t.Error("symbol mismatch should be rejected")
	}

	bad := bar("AAPL", "5m", 0, 100)
	bad.High = bad.Low - 5
	if err := s.Append(bad); err == nil {
		t.Error("high below low should be rejected")
	}

	neg := bar("AAPL", "5m", 0, 100)
	neg.Volume = -1
	if err := s.Append(neg); err == nil {
		t.Error("negative volume should be rejected")
	}
}

func TestBarsUpToExcludesOpenBar(t *testing.T) {
	s := NewSeries("AAPL", "5m")
	for i := 0; i < 4; i++ {
		if err := s.Append(bar("AAPL", "5m", i, 100)); err != nil {
			t.Fatal(err)
		}
	}

	// At the close of bar 2, bars 0..2 are closed; bar 3 is in progress.
	cutoff := t0.Add(3 * 5 * time.Minute)
	got := s.BarsUpTo(cutoff)
	if len(got) != 3 {
		t.Fatalf("BarsUpTo(%v) returned %d bars, want 3", cutoff, len(got))
	}

	// One tick before the close of bar 0, nothing is closed.
	if got := s.BarsUpTo(t0.Add(5*time.Minute - time.Second)); len(got) != 0 {
		t.Errorf("before first close: got %d bars, want 0", len(got))
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	if err := st.Append(bar("AAPL", "5m", 0, 100)); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(bar("MSFT", "5m", 0, 200)); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(bar("AAPL", "1h", 0, 100)); err != nil {
		t.Fatal(err)
	}

	if s := st.Get("AAPL", "5m"); s == nil || s.Len() != 1 {
		t.Error("Get(AAPL, 5m) should return the appended series")
	}
	if s := st.Get("AAPL", "1d"); s != nil {
		t.Error("Get on an unknown timeframe should return nil")
	}

	syms := st.Symbols()
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Errorf("Symbols() = %v, want [AAPL MSFT]", syms)
	}
}
