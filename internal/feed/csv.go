package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/domain"
)

// csvTimeLayouts are the timestamp formats accepted in CSV files, tried in
// order.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV reads OHLCV bars from a CSV file. The file must have a header row
// containing at least time, open, high, low, close and volume columns (case
// insensitive, "timestamp" and "date" accepted for time). All bars are tagged
// with the given symbol and timeframe.
func LoadCSV(path, symbol string, tf domain.Timeframe) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f, symbol, tf)
}

// ParseCSV reads bars from r in the format described by LoadCSV.
func ParseCSV(r io.Reader, symbol string, tf domain.Timeframe) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	timeCol := -1
	for _, name := range []string{"time", "timestamp", "date"} {
		if i, ok := cols[name]; ok {
			timeCol = i
			break
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("csv header missing time column: %v", header)
	}
	for _, name := range []string{"open", "high", "low", "close", "volume"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv header missing %q column: %v", name, header)
		}
	}

	symbol = strings.ToUpper(symbol)
	var bars []domain.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line++

		openTime, err := parseCSVTime(record[timeCol])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		vals := make([]float64, 5)
		for i, name := range []string{"open", "high", "low", "close", "volume"} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[cols[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad %s %q", line, name, record[cols[name]])
			}
			vals[i] = v
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  openTime,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// Unix seconds or milliseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
