package forecast

import (
	"CoinScope/internal/indicator"
)

// BuildExamples turns an indicator frame into supervised training
// examples. Each example is a trailing window of lookback closes plus the
// aligned indicator values (short MA, RSI, MACD line, Bollinger width) at
// the window end; the label is the close one period ahead. Rows with any
// undefined feature are excluded.
func BuildExamples(frame *indicator.Frame, lookback int) (X [][]float64, y []float64) {
	n := frame.Len()
	for i := lookback - 1; i < n-1; i++ {
		feats := rowFeatures(frame, i, lookback)
		if feats == nil {
			continue
		}
		X = append(X, feats)
		y = append(y, frame.Close[i+1])
	}
	return X, y
}

// rowFeatures builds the feature vector ending at index i, or nil when
// any component is still in its warm-up window.
func rowFeatures(frame *indicator.Frame, i, lookback int) []float64 {
	if i < lookback-1 {
		return nil
	}
	ma := frame.MAShort[i]
	rsi := frame.RSI[i]
	macd := frame.MACD[i]
	width := frame.BBWidth(i)
	if !indicator.Defined(ma) || !indicator.Defined(rsi) ||
		!indicator.Defined(macd) || !indicator.Defined(width) {
		return nil
	}
	feats := make([]float64, 0, lookback+4)
	feats = append(feats, frame.Close[i-lookback+1:i+1]...)
	feats = append(feats, ma, rsi, macd, width)
	return feats
}

// closeFeatures recomputes the same feature vector from a bare close
// series, used while extrapolating over the synthetic extension. The
// rolling indicators are rederived from the extended closes so each step
// sees features consistent with the training distribution.
func closeFeatures(closes []float64, cfg indicator.Config, lookback int) []float64 {
	i := len(closes) - 1
	if i < lookback-1 {
		return nil
	}
	ma := last(indicator.SMA(closes, cfg.MAShort))
	rsi := last(indicator.RSI(closes, cfg.RSIPeriod))
	macdLine, _, _ := indicator.MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	macd := last(macdLine)
	upper, _, lower := indicator.Bollinger(closes, cfg.BBWindow, cfg.BBStdDev)
	width := last(upper) - last(lower)

	if !indicator.Defined(ma) || !indicator.Defined(rsi) ||
		!indicator.Defined(macd) || !indicator.Defined(width) {
		return nil
	}
	feats := make([]float64, 0, lookback+4)
	feats = append(feats, closes[i-lookback+1:i+1]...)
	feats = append(feats, ma, rsi, macd, width)
	return feats
}

func last(values []float64) float64 {
	return values[len(values)-1]
}
