package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"CoinScope/internal/model"
)

// ClientConfig tunes the paginated fetch loop.
type ClientConfig struct {
	Timeframe  string
	PageLimit  int           // max candles per provider call
	RateLimit  time.Duration // minimum spacing between provider calls
	MaxRetries int           // retry budget per page for network errors
	Backoff    time.Duration // initial retry backoff, doubled per attempt
}

// FetchStats counts non-fatal events during one fetch.
type FetchStats struct {
	Pages   int
	Dropped int // candles failing OHLCV validation
	Retries int
}

// Client fetches a complete candle series from a Provider, paginating
// until the requested range is covered. Calls are throttled internally so
// provider rate limits never abort the pipeline.
type Client struct {
	provider Provider
	cfg      ClientConfig
	period   time.Duration
	limiter  *rate.Limiter
	log      *logrus.Entry
}

// NewClient creates a Client. The timeframe must be parseable; an invalid
// one is a programming error surfaced immediately.
func NewClient(provider Provider, cfg ClientConfig, log *logrus.Entry) (*Client, error) {
	period, err := ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 1000
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Client{
		provider: provider,
		cfg:      cfg,
		period:   period,
		limiter:  rate.NewLimiter(rate.Every(cfg.RateLimit), 1),
		log:      log.WithField("provider", provider.Name()),
	}, nil
}

// Period returns the duration of one candle at the configured timeframe.
func (c *Client) Period() time.Duration { return c.period }

// Fetch retrieves all candles for key in [since, until], oldest first.
// Invalid candles are dropped and counted rather than failing the fetch.
// Cancellation is checked between pages, never mid-call.
func (c *Client) Fetch(ctx context.Context, key model.SeriesKey, since, until time.Time) (*model.CandleSeries, FetchStats, error) {
	series := &model.CandleSeries{Key: key}
	stats := FetchStats{}
	cursor := since

	log := c.log.WithFields(logrus.Fields{"symbol": key.Symbol, "exchange": key.Exchange})
	log.WithFields(logrus.Fields{
		"since": since.Format("2006-01-02"),
		"until": until.Format("2006-01-02"),
	}).Info("fetching candles")

	for !cursor.After(until) {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, stats, err
		}

		page, err := c.fetchPage(ctx, key.Symbol, cursor, &stats)
		if err != nil {
			return nil, stats, fmt.Errorf("fetch page at %s: %w", cursor.Format("2006-01-02"), err)
		}
		stats.Pages++
		if len(page) == 0 {
			break
		}

		for _, candle := range page {
			if candle.Time.After(until) {
				continue
			}
			if err := candle.Validate(); err != nil {
				stats.Dropped++
				log.WithField("time", candle.Time.Format(time.RFC3339)).Warnf("dropping invalid candle: %v", err)
				continue
			}
			series.Candles = append(series.Candles, candle)
		}

		// Advance past the last returned candle to guarantee forward
		// progress even when the provider repeats the boundary candle.
		next := page[len(page)-1].Time.Add(c.period)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	log.WithFields(logrus.Fields{
		"candles": series.Len(),
		"pages":   stats.Pages,
		"dropped": stats.Dropped,
	}).Info("fetch complete")
	return series, stats, nil
}

// fetchPage performs one provider call, retrying network errors with
// exponential backoff. Provider errors surface immediately.
func (c *Client) fetchPage(ctx context.Context, symbol string, since time.Time, stats *FetchStats) ([]model.Candle, error) {
	backoff := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			stats.Retries++
			c.log.WithField("attempt", attempt).Warnf("retrying after network error: %v", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		page, err := c.provider.FetchOHLCV(ctx, symbol, c.cfg.Timeframe, since, c.cfg.PageLimit)
		if err == nil {
			return page, nil
		}

		var netErr *model.NetworkError
		if errors.As(err, &netErr) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}
