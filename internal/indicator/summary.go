package indicator

import (
	"math"

	"CoinScope/internal/model"
)

// Summarize computes descriptive statistics for a series: current price,
// all-time high/low, mean period return and volatility (both percent),
// and the latest volume. The trend label is filled in by the caller.
func Summarize(series *model.CandleSeries) model.Summary {
	sum := model.Summary{Trend: model.TrendNeutral}
	if series.Len() == 0 {
		return sum
	}

	last := series.Candles[series.Len()-1]
	sum.CurrentPrice = last.Close
	sum.LastVolume = last.Volume

	sum.AllTimeHigh = math.Inf(-1)
	sum.AllTimeLow = math.Inf(1)
	for _, c := range series.Candles {
		if c.High > sum.AllTimeHigh {
			sum.AllTimeHigh = c.High
		}
		if c.Low < sum.AllTimeLow {
			sum.AllTimeLow = c.Low
		}
	}

	closes := series.Closes()
	if len(closes) > 1 {
		returns := make([]float64, 0, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			if closes[i-1] != 0 {
				returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
			}
		}
		if len(returns) > 0 {
			mean := 0.0
			for _, r := range returns {
				mean += r
			}
			mean /= float64(len(returns))
			variance := 0.0
			for _, r := range returns {
				d := r - mean
				variance += d * d
			}
			variance /= float64(len(returns))
			sum.MeanDailyRet = mean * 100
			sum.Volatility = math.Sqrt(variance) * 100
		}
	}
	return sum
}
