// Package forecast trains a regression model on engineered features and
// extrapolates a forward price path. Multi-step extrapolation is
// autoregressive: every step feeds its own prediction back in as the next
// step's most recent close, so error compounds over the horizon. The
// horizon is an explicit parameter and travels with the result; treat
// long-horizon output as an illustration, not a confident estimate.
package forecast

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
)

// Config tunes the forecaster.
type Config struct {
	Lookback    int   // trailing closes per training example
	MinExamples int   // training refuses below this many complete examples
	Trees       int   // ensemble size
	Seed        int64 // explicit, overridable randomness
	Period      time.Duration
}

// Forecaster engineers features, trains a Model, and extrapolates.
type Forecaster struct {
	cfg      Config
	newModel func() Model
	log      *logrus.Entry
}

// New creates a Forecaster backed by a bagged-tree ensemble.
func New(cfg Config, log *logrus.Entry) *Forecaster {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 60
	}
	if cfg.MinExamples <= 0 {
		cfg.MinExamples = 200
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.Period <= 0 {
		cfg.Period = 24 * time.Hour
	}
	f := &Forecaster{cfg: cfg, log: log}
	f.newModel = func() Model { return NewForest(cfg.Trees, cfg.Seed) }
	return f
}

// WithModel overrides the model constructor, e.g. to substitute a linear
// regressor in tests.
func (f *Forecaster) WithModel(newModel func() Model) *Forecaster {
	f.newModel = newModel
	return f
}

// Forecast trains on the historical series and produces horizon future
// points past the last known candle. Fails with ErrInsufficientData when
// fewer than MinExamples complete examples exist; the caller can still
// use the series, frame, and trend it already has.
func (f *Forecaster) Forecast(series *model.CandleSeries, frame *indicator.Frame, horizon int) (*model.ForecastResult, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	lastCandle, ok := series.Last()
	if !ok {
		return nil, model.ErrNoData
	}

	X, y := BuildExamples(frame, f.cfg.Lookback)
	if len(X) < f.cfg.MinExamples {
		return nil, fmt.Errorf("%w: %d complete examples, need %d",
			model.ErrInsufficientData, len(X), f.cfg.MinExamples)
	}

	f.log.WithFields(logrus.Fields{
		"symbol":   series.Key.Symbol,
		"examples": len(X),
		"horizon":  horizon,
		"seed":     f.cfg.Seed,
	}).Info("training forecast model")

	m := f.newModel()
	if err := m.Train(X, y); err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	// Extend the close series one synthetic step at a time, recomputing
	// the rolling indicator features over the extension.
	extended := make([]float64, len(frame.Close), len(frame.Close)+horizon)
	copy(extended, frame.Close)

	result := &model.ForecastResult{
		Key:     series.Key,
		Horizon: horizon,
		Seed:    f.cfg.Seed,
		Points:  make([]model.ForecastPoint, 0, horizon),
	}
	for step := 1; step <= horizon; step++ {
		feats := closeFeatures(extended, frame.Config, f.cfg.Lookback)
		if feats == nil {
			return nil, fmt.Errorf("%w: series too short for feature window", model.ErrInsufficientData)
		}
		pred := m.Predict(feats)
		extended = append(extended, pred)
		result.Points = append(result.Points, model.ForecastPoint{
			Time:           lastCandle.Time.Add(time.Duration(step) * f.cfg.Period),
			PredictedClose: pred,
		})
	}
	return result, nil
}
