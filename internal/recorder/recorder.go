package recorder

import "time"

// RunRecord summarizes one completed analysis run.
type RunRecord struct {
	RanAt           time.Time
	Symbol          string
	Exchange        string
	Candles         int
	CurrentPrice    float64
	Trend           string
	ForecastHorizon int     // 0 when the forecast stage failed
	ForecastEnd     float64 // predicted close at the end of the horizon
	ForecastError   string
	DroppedCandles  int
	SkippedRows     int
}

// Recorder persists analysis-run history.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	Close() error
}
