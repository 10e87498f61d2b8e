package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/config"
	"CoinScope/internal/exchange"
	"CoinScope/internal/forecast"
	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
	"CoinScope/internal/pipeline"
	"CoinScope/internal/recorder"
	"CoinScope/internal/report"
	"CoinScope/internal/scheduler"
	"CoinScope/internal/store"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("DEBUG") == "true" {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log.Info("CoinScope starting")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	key := cfg.Key()

	// Init provider and exchange client
	var provider exchange.Provider
	if cfg.Provider.BaseURL != "" {
		provider = exchange.NewRESTProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Market.Exchange, cfg.Proxy)
	} else {
		log.Warn("no provider.base_url configured, using mock data source")
		provider = &exchange.MockProvider{Price: 30000}
	}
	client, err := exchange.NewClient(provider, exchange.ClientConfig{
		Timeframe:  cfg.Provider.Timeframe,
		PageLimit:  cfg.Provider.PageLimit,
		RateLimit:  time.Duration(cfg.Provider.RateLimitMs) * time.Millisecond,
		MaxRetries: cfg.Provider.MaxRetries,
	}, log)
	if err != nil {
		log.Fatalf("init exchange client: %v", err)
	}

	// Init data store
	st, err := store.Open(cfg.Data.CSVFilePath, log)
	if err != nil {
		log.Fatalf("open candle store: %v", err)
	}

	// Init forecaster and pipeline
	fc := forecast.New(forecast.Config{
		Lookback:    cfg.Forecast.Lookback,
		MinExamples: cfg.Forecast.MinExamples,
		Trees:       cfg.Forecast.Trees,
		Seed:        cfg.Forecast.Seed,
		Period:      client.Period(),
	}, log)
	runner := pipeline.NewRunner(client, st, fc, indicator.DefaultConfig(), cfg.Forecast.HorizonDays, log)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warnf("init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Schedule.RefreshCron == "" {
		// Run once, print and save the report, exit.
		if err := runOnce(ctx, runner, rec, cfg, key); err != nil {
			log.Fatalf("analysis failed: %v", err)
		}
		return
	}

	sched := scheduler.New(ctx, runner, rec, key, cfg.AnalysisConfig, log)
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("register refresh schedule: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, executing analysis now")
		go sched.RunNow()
	}

	log.Info("CoinScope is running. Press Ctrl+C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping")
	cancel()
	log.Info("CoinScope stopped")
}

func runOnce(ctx context.Context, runner *pipeline.Runner, rec recorder.Recorder, cfg *config.Config, key model.SeriesKey) error {
	analysisCfg, err := cfg.AnalysisConfig()
	if err != nil {
		return err
	}

	outcome := <-runner.Go(ctx, key, analysisCfg, func(p pipeline.Progress) {
		logrus.WithField("stage", p.Stage).Info(p.Message)
	})
	if outcome.Err != nil {
		return outcome.Err
	}
	result := outcome.Result

	fmt.Println(report.Format(key, result))
	path, err := report.Save(analysisCfg.OutputDir, key, result)
	if err != nil {
		return err
	}
	logrus.WithField("path", path).Info("report saved")

	runRec := &recorder.RunRecord{
		RanAt:          time.Now(),
		Symbol:         key.Symbol,
		Exchange:       key.Exchange,
		Candles:        result.Series.Len(),
		CurrentPrice:   result.Summary.CurrentPrice,
		Trend:          string(result.Trend),
		DroppedCandles: result.Warnings.DroppedCandles,
		SkippedRows:    result.Warnings.SkippedRows,
	}
	if result.Forecast != nil {
		runRec.ForecastHorizon = result.Forecast.Horizon
		runRec.ForecastEnd = result.Forecast.Points[len(result.Forecast.Points)-1].PredictedClose
	} else if result.ForecastErr != nil {
		runRec.ForecastError = result.ForecastErr.Error()
	}
	if err := rec.RecordRun(runRec); err != nil {
		logrus.Errorf("record run: %v", err)
	}
	return nil
}
