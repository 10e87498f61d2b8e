package model

import "time"

// TrendLabel classifies the current market direction.
type TrendLabel string

const (
	TrendBullish TrendLabel = "BULLISH"
	TrendBearish TrendLabel = "BEARISH"
	TrendNeutral TrendLabel = "NEUTRAL"
)

// ForecastPoint is one predicted close at a future timestamp.
type ForecastPoint struct {
	Time           time.Time
	PredictedClose float64
}

// ForecastResult is the fixed-horizon forward price path. Predictions are
// autoregressive: each step feeds the previous prediction back in, so
// confidence degrades as the horizon grows. Immutable after creation.
type ForecastResult struct {
	Key     SeriesKey
	Horizon int // number of future periods
	Seed    int64
	Points  []ForecastPoint
}

// Summary holds descriptive statistics for one series.
type Summary struct {
	CurrentPrice   float64
	AllTimeHigh    float64
	AllTimeLow     float64
	MeanDailyRet   float64 // mean period-over-period return, percent
	Volatility     float64 // stddev of period returns, percent
	LastVolume     float64
	Trend          TrendLabel
}

// AnalysisConfig is supplied by the caller on every pipeline invocation.
// There is no global mutable configuration inside the core.
type AnalysisConfig struct {
	Start     time.Time
	End       time.Time
	CSVPath   string
	OutputDir string
}
