// Package trend classifies indicator state into a discrete market-trend
// label. This is a deterministic, side-effect-free decision table, not a
// learned model; the forecaster is the only learned component.
package trend

import (
	"CoinScope/internal/indicator"
	"CoinScope/internal/model"
)

// Classify maps the indicator row at index i to a trend label.
// Bullish when the short MA is above the long MA, RSI is above 50, and
// the MACD line is above its signal; Bearish when the symmetric opposite
// holds. Ties and undefined (warm-up) inputs are Neutral.
func Classify(frame *indicator.Frame, i int) model.TrendLabel {
	if frame == nil || i < 0 || i >= frame.Len() {
		return model.TrendNeutral
	}

	maShort := frame.MAShort[i]
	maLong := frame.MALong[i]
	rsi := frame.RSI[i]
	macd := frame.MACD[i]
	signal := frame.MACDSignal[i]

	if !indicator.Defined(maShort) || !indicator.Defined(maLong) ||
		!indicator.Defined(rsi) || !indicator.Defined(macd) || !indicator.Defined(signal) {
		return model.TrendNeutral
	}

	switch {
	case maShort > maLong && rsi > 50 && macd > signal:
		return model.TrendBullish
	case maShort < maLong && rsi < 50 && macd < signal:
		return model.TrendBearish
	default:
		return model.TrendNeutral
	}
}

// Latest classifies the most recent row of the frame.
func Latest(frame *indicator.Frame) model.TrendLabel {
	return Classify(frame, frame.Len()-1)
}
