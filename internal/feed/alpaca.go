// Package feed acquires bar data from external sources: the Alpaca
// market-data API for fetching and polling, and CSV files for offline
// backtests.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marketpulse/internal/domain"
	"marketpulse/internal/util"
)

// requestsPerMinute bounds calls to the market-data API.
const requestsPerMinute = 200

// AlpacaFeed fetches bars from the Alpaca market-data API.
type AlpacaFeed struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaFeed creates an AlpacaFeed with the given credentials. dataURL
// may be empty to use the SDK default.
func NewAlpacaFeed(apiKey, apiSecret, dataURL string) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFeed{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(requestsPerMinute),
		log:     slog.Default().With("component", "feed"),
	}
}

// alpacaTimeFrame maps an engine timeframe to the Alpaca request timeframe.
func alpacaTimeFrame(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case "1m":
		return marketdata.OneMin, nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "30m":
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case "1h":
		return marketdata.OneHour, nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "1d":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// FetchBars fetches bars for multiple symbols on one timeframe in a single
// API call, retrying transient failures with backoff. Results are sorted by
// (symbol, open time).
func (f *AlpacaFeed) FetchBars(ctx context.Context, symbols []string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	atf, err := alpacaTimeFrame(tf)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err = util.Retry(ctx, 3, time.Second, func() error {
		var reqErr error
		multiBars, reqErr = f.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: atf,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars %s: %w", tf, err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timeframe: tf,
				OpenTime:  ab.Timestamp.UTC(),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    float64(ab.Volume),
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].OpenTime.Before(bars[j].OpenTime)
	})
	return bars, nil
}

// fetchStart widens the poll window for one timeframe. The API filters bars
// by their open timestamp, and a bar that closed at or after since opened no
// earlier than one bar length before it.
func fetchStart(since time.Time, tf domain.Timeframe) time.Time {
	return since.Add(-tf.Duration())
}

// FetchLatest fetches the bars that closed since the given time for every
// symbol on every timeframe. Each timeframe is requested from one of its own
// bar-lengths before since; otherwise a coarse bar that opened before since
// but closed after it would never be returned. Callers drop the resulting
// overlap on append.
func (f *AlpacaFeed) FetchLatest(ctx context.Context, symbols []string, tfs []domain.Timeframe, since time.Time) ([]domain.Bar, error) {
	now := time.Now().UTC()
	var all []domain.Bar
	for _, tf := range tfs {
		bars, err := f.FetchBars(ctx, symbols, tf, fetchStart(since, tf), now)
		if err != nil {
			return nil, err
		}
		// Drop the bar still in progress.
		cutoff := now
		for _, b := range bars {
			if !b.OpenTime.Add(tf.Duration()).After(cutoff) {
				all = append(all, b)
			}
		}
	}
	return all, nil
}
