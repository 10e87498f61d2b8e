package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/exchange"
	"CoinScope/internal/forecast"
	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
	"CoinScope/internal/store"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testKey() model.SeriesKey {
	return model.SeriesKey{Symbol: "BTC/USDT", Exchange: "binance"}
}

// trendingCandles rises quadratically from 10000 to 40000 so the final
// index classifies Bullish.
func trendingCandles(start time.Time, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		tt := float64(i) / float64(n-1)
		c := 10000 + 30000*math.Pow(tt, 2)
		out[i] = model.Candle{
			Time: start.Add(time.Duration(i) * 24 * time.Hour),
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: 1000,
		}
	}
	return out
}

// slowProvider delays each call so a run stays in flight long enough for
// contention tests.
type slowProvider struct {
	candles []model.Candle
	delay   time.Duration
}

func (p *slowProvider) Name() string { return "slow" }

func (p *slowProvider) FetchOHLCV(_ context.Context, _, _ string, since time.Time, limit int) ([]model.Candle, error) {
	time.Sleep(p.delay)
	var page []model.Candle
	for _, c := range p.candles {
		if c.Time.Before(since) {
			continue
		}
		page = append(page, c)
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

func newRunner(t *testing.T, provider exchange.Provider, minExamples, horizon int) *Runner {
	t.Helper()
	log := testLog()
	client, err := exchange.NewClient(provider, exchange.ClientConfig{
		Timeframe: "1d",
		RateLimit: time.Millisecond,
		Backoff:   time.Millisecond,
	}, log)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.csv"), log)
	if err != nil {
		t.Fatal(err)
	}
	fc := forecast.New(forecast.Config{
		Lookback:    20,
		MinExamples: minExamples,
		Trees:       5,
		Seed:        42,
		Period:      24 * time.Hour,
	}, log)
	return NewRunner(client, st, fc, indicator.DefaultConfig(), horizon, log)
}

func analysisConfig(start time.Time, n int) model.AnalysisConfig {
	return model.AnalysisConfig{
		Start: start,
		End:   start.Add(time.Duration(n) * 24 * time.Hour),
	}
}

func TestRunFullPipeline(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &exchange.MockProvider{Candles: trendingCandles(start, 300)}
	runner := newRunner(t, provider, 50, 10)

	var stages []string
	var mu sync.Mutex
	result, err := runner.Run(context.Background(), testKey(), analysisConfig(start, 300), func(p Progress) {
		mu.Lock()
		stages = append(stages, p.Stage)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Series.Len() != 300 {
		t.Errorf("series length = %d, want 300", result.Series.Len())
	}
	if result.Frame.Len() != 300 {
		t.Errorf("frame length = %d, want 300", result.Frame.Len())
	}
	if result.Trend != model.TrendBullish {
		t.Errorf("trend = %s, want %s", result.Trend, model.TrendBullish)
	}
	if result.Forecast == nil {
		t.Fatalf("expected a forecast, got error: %v", result.ForecastErr)
	}
	if len(result.Forecast.Points) != 10 {
		t.Errorf("forecast points = %d, want 10", len(result.Forecast.Points))
	}
	if result.Summary.CurrentPrice != 40000 {
		t.Errorf("summary price = %f, want 40000", result.Summary.CurrentPrice)
	}

	seen := map[string]bool{}
	for _, s := range stages {
		seen[s] = true
	}
	for _, want := range []string{model.StageFetch, model.StageMerge, model.StageIndicators, model.StageTrend, model.StageForecast} {
		if !seen[want] {
			t.Errorf("no progress event for stage %s", want)
		}
	}
}

func TestRunForecastFailureKeepsUpstreamResults(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// 80 candles give far fewer complete examples than the threshold.
	provider := &exchange.MockProvider{Candles: trendingCandles(start, 80)}
	runner := newRunner(t, provider, 200, 10)

	result, err := runner.Run(context.Background(), testKey(), analysisConfig(start, 80), nil)
	if err != nil {
		t.Fatalf("a forecast-only failure must not fail the run: %v", err)
	}
	if result.Forecast != nil {
		t.Error("expected no forecast")
	}
	if !errors.Is(result.ForecastErr, model.ErrInsufficientData) {
		t.Errorf("ForecastErr = %v, want ErrInsufficientData", result.ForecastErr)
	}
	var stageErr *model.StageError
	if !errors.As(result.ForecastErr, &stageErr) || stageErr.Stage != model.StageForecast {
		t.Errorf("ForecastErr should carry the forecast stage tag, got %v", result.ForecastErr)
	}
	if result.Series.Len() != 80 || result.Frame.Len() != 80 {
		t.Error("series and frame must survive a forecast failure")
	}
}

func TestRunBusyRejection(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &slowProvider{candles: trendingCandles(start, 300), delay: 200 * time.Millisecond}
	runner := newRunner(t, provider, 50, 5)
	key := testKey()

	done := runner.Go(context.Background(), key, analysisConfig(start, 300), nil)
	time.Sleep(50 * time.Millisecond) // let the first run enter its fetch

	_, err := runner.Run(context.Background(), key, analysisConfig(start, 300), nil)
	if !errors.Is(err, model.ErrBusy) {
		t.Errorf("second concurrent run should be rejected with ErrBusy, got %v", err)
	}

	outcome := <-done
	if outcome.Err != nil {
		t.Fatalf("first run failed: %v", outcome.Err)
	}
}

func TestRunDifferentKeysConcurrently(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &slowProvider{candles: trendingCandles(start, 250), delay: 50 * time.Millisecond}
	runner := newRunner(t, provider, 50, 5)

	btc := runner.Go(context.Background(), model.SeriesKey{Symbol: "BTC/USDT", Exchange: "binance"}, analysisConfig(start, 250), nil)
	eth := runner.Go(context.Background(), model.SeriesKey{Symbol: "ETH/USDT", Exchange: "binance"}, analysisConfig(start, 250), nil)

	a, b := <-btc, <-eth
	if a.Err != nil || b.Err != nil {
		t.Fatalf("concurrent runs for different keys failed: %v, %v", a.Err, b.Err)
	}
}

func TestRunCancellation(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &slowProvider{candles: trendingCandles(start, 300), delay: 100 * time.Millisecond}
	runner := newRunner(t, provider, 50, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, testKey(), analysisConfig(start, 300), nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("cancellation should come back stage-tagged, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should unwrap to context.Canceled, got %v", err)
	}
}

func TestRunNoDataAborts(t *testing.T) {
	provider := &exchange.MockProvider{Candles: []model.Candle{}}
	runner := newRunner(t, provider, 50, 5)

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := runner.Run(context.Background(), testKey(), analysisConfig(start, 10), nil)
	if !errors.Is(err, model.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != model.StageMerge {
		t.Errorf("error should carry the merge stage tag, got %v", err)
	}
}

func TestRunUsesCacheWhenFetchFails(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	good := &exchange.MockProvider{Candles: trendingCandles(start, 300)}
	runner := newRunner(t, good, 50, 5)
	key := testKey()
	cfg := analysisConfig(start, 300)

	if _, err := runner.Run(context.Background(), key, cfg, nil); err != nil {
		t.Fatalf("priming run: %v", err)
	}

	// Same store, but the provider now refuses every call.
	bad := &exchange.MockProvider{Err: &model.ProviderError{Op: "fetch ohlcv", Status: 503, Detail: "maintenance"}}
	client, err := exchange.NewClient(bad, exchange.ClientConfig{Timeframe: "1d", RateLimit: time.Millisecond, Backoff: time.Millisecond}, testLog())
	if err != nil {
		t.Fatal(err)
	}
	runner.client = client

	result, err := runner.Run(context.Background(), key, cfg, nil)
	if err != nil {
		t.Fatalf("run should fall back to cached candles: %v", err)
	}
	if result.Series.Len() != 300 {
		t.Errorf("cached series length = %d, want 300", result.Series.Len())
	}
}
