// Package indicator computes technical indicators over a candle series.
// All computations are pure functions of the input: no state is carried
// between calls, so recomputation is deterministic. Rows inside an
// indicator's warm-up window are NaN, never zero.
package indicator

import (
	"math"
	"time"

	"CoinScope/internal/model"
)

// Config holds the indicator windows. Zero values take the defaults.
type Config struct {
	MAShort    int // simple moving average, short window
	MAMid      int
	MALong     int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	BBWindow   int
	BBStdDev   float64
	VolWindow  int
}

// DefaultConfig returns the conventional windows: MA 20/50/200, RSI 14,
// MACD 12/26/9, Bollinger 20±2σ, volume MA 20.
func DefaultConfig() Config {
	return Config{
		MAShort:    20,
		MAMid:      50,
		MALong:     200,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBWindow:   20,
		BBStdDev:   2,
		VolWindow:  20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MAShort <= 0 {
		c.MAShort = d.MAShort
	}
	if c.MAMid <= 0 {
		c.MAMid = d.MAMid
	}
	if c.MALong <= 0 {
		c.MALong = d.MALong
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.MACDFast <= 0 {
		c.MACDFast = d.MACDFast
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = d.MACDSlow
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = d.MACDSignal
	}
	if c.BBWindow <= 0 {
		c.BBWindow = d.BBWindow
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = d.BBStdDev
	}
	if c.VolWindow <= 0 {
		c.VolWindow = d.VolWindow
	}
	return c
}

// Frame holds per-timestamp aligned indicator rows, one row per candle in
// the source series. NaN marks an undefined (warm-up) value.
type Frame struct {
	Config Config
	Times  []time.Time
	Close  []float64

	MAShort []float64
	MAMid   []float64
	MALong  []float64

	RSI []float64

	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64

	BBUpper  []float64
	BBMiddle []float64
	BBLower  []float64

	VolumeMA []float64
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Times)
}

// Defined reports whether an indicator value is outside its warm-up
// window.
func Defined(v float64) bool { return !math.IsNaN(v) }

// BBWidth returns the Bollinger band width at index i, NaN during
// warm-up.
func (f *Frame) BBWidth(i int) float64 {
	return f.BBUpper[i] - f.BBLower[i]
}

// Compute derives the full indicator frame from a candle series.
func Compute(series *model.CandleSeries, cfg Config) *Frame {
	cfg = cfg.withDefaults()
	closes := series.Closes()
	volumes := series.Volumes()

	frame := &Frame{
		Config: cfg,
		Times:  make([]time.Time, series.Len()),
		Close:  closes,
	}
	for i, c := range series.Candles {
		frame.Times[i] = c.Time
	}

	frame.MAShort = SMA(closes, cfg.MAShort)
	frame.MAMid = SMA(closes, cfg.MAMid)
	frame.MALong = SMA(closes, cfg.MALong)
	frame.RSI = RSI(closes, cfg.RSIPeriod)
	frame.MACD, frame.MACDSignal, frame.MACDHist = MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	frame.BBUpper, frame.BBMiddle, frame.BBLower = Bollinger(closes, cfg.BBWindow, cfg.BBStdDev)
	frame.VolumeMA = SMA(volumes, cfg.VolWindow)
	return frame
}

// SMA computes the trailing simple moving average; indices before
// window-1 are NaN.
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA computes the exponentially weighted moving average with the
// standard recursive smoothing, seeded with the simple average of the
// first period values. Indices before period-1 are NaN.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	k := 2.0 / (float64(period) + 1.0)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index. The first
// period rows are NaN. A window with zero average loss yields 100; a
// window with no price movement at all yields the neutral 50.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // flat window, no momentum either way
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes the MACD line (EMA fast − EMA slow), the signal line
// (EMA of the MACD line), and their histogram.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine, hist []float64) {
	n := len(closes)
	line = nanSlice(n)
	signalLine = nanSlice(n)
	hist = nanSlice(n)

	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	for i := 0; i < n; i++ {
		if Defined(emaFast[i]) && Defined(emaSlow[i]) {
			line[i] = emaFast[i] - emaSlow[i]
		}
	}

	// The signal line is an EMA over the defined portion of the MACD line.
	start := -1
	for i, v := range line {
		if Defined(v) {
			start = i
			break
		}
	}
	if start < 0 {
		return line, signalLine, hist
	}
	sig := EMA(line[start:], signal)
	for i, v := range sig {
		signalLine[start+i] = v
	}
	for i := 0; i < n; i++ {
		if Defined(line[i]) && Defined(signalLine[i]) {
			hist[i] = line[i] - signalLine[i]
		}
	}
	return line, signalLine, hist
}

// Bollinger computes the middle band (SMA), and upper/lower bands at
// ±stddevs standard deviations of close over the same window.
func Bollinger(closes []float64, window int, stddevs float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper = nanSlice(n)
	lower = nanSlice(n)
	middle = SMA(closes, window)
	if window <= 1 || n < window {
		return upper, middle, lower
	}
	for i := window - 1; i < n; i++ {
		mean := middle[i]
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - mean
			sum += d * d
		}
		sd := math.Sqrt(sum / float64(window))
		upper[i] = mean + stddevs*sd
		lower[i] = mean - stddevs*sd
	}
	return upper, middle, lower
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
