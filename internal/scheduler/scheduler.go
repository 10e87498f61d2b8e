package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"CoinScope/internal/model"
	"CoinScope/internal/pipeline"
	"CoinScope/internal/recorder"
)

// Scheduler re-runs the analysis pipeline on a cron schedule and records
// each run. The analysis config is rebuilt per run so an open-ended end
// date keeps tracking the current time.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *pipeline.Runner
	Recorder recorder.Recorder
	Key      model.SeriesKey
	ConfigFn func() (model.AnalysisConfig, error)
	Ctx      context.Context

	log *logrus.Entry
}

// New creates a Scheduler.
func New(ctx context.Context, runner *pipeline.Runner, rec recorder.Recorder, key model.SeriesKey, cfgFn func() (model.AnalysisConfig, error), log *logrus.Entry) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Runner:   runner,
		Recorder: rec,
		Key:      key,
		ConfigFn: cfgFn,
		Ctx:      ctx,
		log:      log,
	}
}

// Register adds the refresh task at the given cron expression.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.log.Info("scheduler stopped")
}

// RunNow executes the refresh task immediately (manual trigger).
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.log.Info("running scheduled analysis")
	cfg, err := s.ConfigFn()
	if err != nil {
		s.log.Errorf("build analysis config: %v", err)
		return
	}

	result, err := s.Runner.Run(s.Ctx, s.Key, cfg, func(p pipeline.Progress) {
		s.log.WithField("stage", p.Stage).Debug(p.Message)
	})
	if err != nil {
		s.log.Errorf("scheduled analysis failed: %v", err)
		return
	}

	rec := &recorder.RunRecord{
		RanAt:          time.Now(),
		Symbol:         s.Key.Symbol,
		Exchange:       s.Key.Exchange,
		Candles:        result.Series.Len(),
		CurrentPrice:   result.Summary.CurrentPrice,
		Trend:          string(result.Trend),
		DroppedCandles: result.Warnings.DroppedCandles,
		SkippedRows:    result.Warnings.SkippedRows,
	}
	if result.Forecast != nil {
		rec.ForecastHorizon = result.Forecast.Horizon
		rec.ForecastEnd = result.Forecast.Points[len(result.Forecast.Points)-1].PredictedClose
	} else if result.ForecastErr != nil {
		rec.ForecastError = result.ForecastErr.Error()
	}
	if err := s.Recorder.RecordRun(rec); err != nil {
		s.log.Errorf("record run: %v", err)
	}
}
