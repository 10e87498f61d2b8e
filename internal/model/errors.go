package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across pipeline stages.
var (
	// ErrBusy signals an analysis is already in flight for the key.
	ErrBusy = errors.New("analysis already in flight for key")

	// ErrInsufficientData signals too few complete training examples
	// for the forecaster to train a model.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNoData signals an empty series where candles are required.
	ErrNoData = errors.New("no candle data available")
)

// NetworkError wraps a transport-level failure (connection refused,
// timeout). Transient: the exchange client retries these with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is a well-formed error response from the market-data
// provider (unknown symbol, invalid range). Not retryable.
type ProviderError struct {
	Op     string
	Status int
	Detail string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error during %s (status %d): %s", e.Op, e.Status, e.Detail)
}

// Pipeline stage names, used to tag errors and progress events.
const (
	StageFetch      = "fetch"
	StageMerge      = "merge"
	StageIndicators = "indicators"
	StageTrend      = "trend"
	StageForecast   = "forecast"
)

// StageError tags a failure with the pipeline stage and series key it
// occurred in, so the caller can surface a precise message.
type StageError struct {
	Stage string
	Key   SeriesKey
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed for %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
