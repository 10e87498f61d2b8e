// Package pipeline sequences the analysis stages: fetch, merge into the
// cache, indicator computation, trend classification, and forecast. One
// invocation runs on the caller's goroutine; use Go for a background run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/exchange"
	"CoinScope/internal/forecast"
	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
	"CoinScope/internal/store"
	"CoinScope/internal/trend"
)

// Progress is one pipeline progress notification. Percent is -1 when the
// stage length is indeterminate.
type Progress struct {
	Stage   string
	Percent float64
	Message string
}

// ProgressFunc receives progress notifications. It may be nil.
type ProgressFunc func(Progress)

// Warnings counts the recoverable issues absorbed during a run.
type Warnings struct {
	DroppedCandles int // candles failing OHLCV validation during fetch
	SkippedRows    int // corrupt rows skipped while loading the cache
}

// Result is the terminal success payload of one analysis run. Forecast is
// nil, with the cause in ForecastErr, when only the forecast stage failed;
// everything upstream remains usable.
type Result struct {
	Series      *model.CandleSeries
	Frame       *indicator.Frame
	Trend       model.TrendLabel
	Summary     model.Summary
	Forecast    *model.ForecastResult
	ForecastErr error
	Warnings    Warnings
}

// Runner orchestrates the pipeline stages. A second Run for a key already
// in flight is rejected with model.ErrBusy; independent keys run
// concurrently.
type Runner struct {
	client     *exchange.Client
	store      *store.Store
	forecaster *forecast.Forecaster
	indCfg     indicator.Config
	horizon    int
	log        *logrus.Entry

	mu       sync.Mutex
	inflight map[model.SeriesKey]bool
}

// NewRunner wires the pipeline components together.
func NewRunner(client *exchange.Client, st *store.Store, fc *forecast.Forecaster, indCfg indicator.Config, horizon int, log *logrus.Entry) *Runner {
	return &Runner{
		client:     client,
		store:      st,
		forecaster: fc,
		indCfg:     indCfg,
		horizon:    horizon,
		log:        log,
		inflight:   make(map[model.SeriesKey]bool),
	}
}

// Outcome is the terminal payload of an asynchronous run.
type Outcome struct {
	Result *Result
	Err    error
}

// Go runs the pipeline on a background goroutine and delivers the
// terminal outcome on the returned channel, so an interactive caller is
// never blocked by network or training latency.
func (r *Runner) Go(ctx context.Context, key model.SeriesKey, cfg model.AnalysisConfig, onProgress ProgressFunc) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		res, err := r.Run(ctx, key, cfg, onProgress)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Run executes one full analysis. Cancellation is cooperative: the
// context is checked between stages, never mid network call or mid
// training run. Stage failures come back as *model.StageError.
func (r *Runner) Run(ctx context.Context, key model.SeriesKey, cfg model.AnalysisConfig, onProgress ProgressFunc) (*Result, error) {
	if !r.acquire(key) {
		return nil, &model.StageError{Stage: model.StageFetch, Key: key, Err: model.ErrBusy}
	}
	defer r.release(key)

	log := r.log.WithFields(logrus.Fields{"symbol": key.Symbol, "exchange": key.Exchange})
	notify := func(stage string, pct float64, msg string) {
		if onProgress != nil {
			onProgress(Progress{Stage: stage, Percent: pct, Message: msg})
		}
	}

	result := &Result{Trend: model.TrendNeutral}

	// Stage 1: fetch. A failed fetch is recoverable as long as the cache
	// already holds data; the analysis then runs on the cached series.
	notify(model.StageFetch, -1, "fetching candles from "+key.Exchange)
	incoming, stats, fetchErr := r.client.Fetch(ctx, key, cfg.Start, cfg.End)
	result.Warnings.DroppedCandles = stats.Dropped
	if fetchErr != nil {
		if ctx.Err() != nil {
			return nil, &model.StageError{Stage: model.StageFetch, Key: key, Err: ctx.Err()}
		}
		log.Warnf("fetch failed, falling back to cached data: %v", fetchErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.StageError{Stage: model.StageFetch, Key: key, Err: err}
	}

	// Stage 2: merge. Transactional: the incoming page set is merged
	// fully or not at all.
	notify(model.StageMerge, -1, "merging into cache")
	var series *model.CandleSeries
	var err error
	if fetchErr == nil && incoming.Len() > 0 {
		series, err = r.store.Merge(key, incoming)
	} else {
		series, err = r.store.Load(key)
	}
	if err != nil {
		return nil, &model.StageError{Stage: model.StageMerge, Key: key, Err: err}
	}
	if skipped, err := r.store.SkippedRows(); err == nil {
		result.Warnings.SkippedRows = skipped
	}
	if series.Len() == 0 {
		err := model.ErrNoData
		if fetchErr != nil {
			err = fmt.Errorf("%w (fetch also failed: %v)", model.ErrNoData, fetchErr)
		}
		return nil, &model.StageError{Stage: model.StageMerge, Key: key, Err: err}
	}
	result.Series = series.Clone()
	if err := ctx.Err(); err != nil {
		return nil, &model.StageError{Stage: model.StageMerge, Key: key, Err: err}
	}

	// Stage 3: indicators. Pure computation, fast enough to run inline.
	notify(model.StageIndicators, -1, fmt.Sprintf("computing indicators over %d candles", series.Len()))
	result.Frame = indicator.Compute(series, r.indCfg)
	if err := ctx.Err(); err != nil {
		return nil, &model.StageError{Stage: model.StageIndicators, Key: key, Err: err}
	}

	// Stage 4: trend.
	notify(model.StageTrend, -1, "classifying trend")
	result.Trend = trend.Latest(result.Frame)
	result.Summary = indicator.Summarize(series)
	result.Summary.Trend = result.Trend
	if err := ctx.Err(); err != nil {
		return nil, &model.StageError{Stage: model.StageTrend, Key: key, Err: err}
	}

	// Stage 5: forecast. A failure here is fatal only for this stage;
	// the series, frame, and trend above still go back to the caller.
	notify(model.StageForecast, -1, fmt.Sprintf("training model and forecasting %d periods", r.horizon))
	fc, err := r.forecaster.Forecast(series, result.Frame, r.horizon)
	if err != nil {
		result.ForecastErr = &model.StageError{Stage: model.StageForecast, Key: key, Err: err}
		if errors.Is(err, model.ErrInsufficientData) {
			log.Warnf("forecast skipped: %v", err)
		} else {
			log.Errorf("forecast failed: %v", err)
		}
	} else {
		result.Forecast = fc
	}

	notify(model.StageForecast, 100, "analysis complete")
	log.WithFields(logrus.Fields{
		"candles": series.Len(),
		"trend":   result.Trend,
		"dropped": result.Warnings.DroppedCandles,
		"skipped": result.Warnings.SkippedRows,
	}).Info("analysis run finished")
	return result, nil
}

func (r *Runner) acquire(key model.SeriesKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[key] {
		return false
	}
	r.inflight[key] = true
	return true
}

func (r *Runner) release(key model.SeriesKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, key)
}
