package model

import (
	"fmt"
	"strings"
	"time"
)

// Candle represents a single OHLCV bar. Immutable once fetched.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLCV invariants: the high must bound the body from
// above, the low from below, and volume cannot be negative.
func (c Candle) Validate() error {
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high %.8f below body (open=%.8f close=%.8f)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low %.8f above body (open=%.8f close=%.8f)", c.Low, c.Open, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume %.8f", c.Volume)
	}
	return nil
}

// SeriesKey identifies one logical candle stream.
type SeriesKey struct {
	Symbol   string // e.g. "BTC/USDT"
	Exchange string // e.g. "binance"
}

func (k SeriesKey) String() string {
	return k.Symbol + "@" + k.Exchange
}

// BaseCoin returns the base currency of the symbol ("BTC/USDT" -> "BTC").
func (k SeriesKey) BaseCoin() string {
	if i := strings.IndexByte(k.Symbol, '/'); i >= 0 {
		return k.Symbol[:i]
	}
	return k.Symbol
}

// CandleSeries is an ordered sequence of candles for one SeriesKey,
// strictly increasing by timestamp with at most one candle per timestamp.
type CandleSeries struct {
	Key     SeriesKey
	Candles []Candle
}

func (s *CandleSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// Last returns the most recent candle, if any.
func (s *CandleSeries) Last() (Candle, bool) {
	if s.Len() == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes extracts the close prices in chronological order.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, s.Len())
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the traded volumes in chronological order.
func (s *CandleSeries) Volumes() []float64 {
	out := make([]float64, s.Len())
	for i, c := range s.Candles {
		out[i] = c.Volume
	}
	return out
}

// Clone returns an independent copy. The store hands these out so callers
// can never mutate the authoritative series.
func (s *CandleSeries) Clone() *CandleSeries {
	if s == nil {
		return nil
	}
	cp := &CandleSeries{Key: s.Key, Candles: make([]Candle, len(s.Candles))}
	copy(cp.Candles, s.Candles)
	return cp
}
