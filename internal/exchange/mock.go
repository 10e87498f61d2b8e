package exchange

import (
	"context"
	"time"

	"CoinScope/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
// If Candles is set, pages are served out of it; otherwise synthetic bars
// are generated around Price.
type MockProvider struct {
	Price   float64
	Candles []model.Candle
	Err     error // returned on every call when set
	Calls   int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchOHLCV(_ context.Context, _ string, timeframe string, since time.Time, limit int) ([]model.Candle, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	candles := m.Candles
	if candles == nil {
		candles = GenerateCandles(m.Price, 300, since)
	}
	var page []model.Candle
	for _, c := range candles {
		if c.Time.Before(since) {
			continue
		}
		page = append(page, c)
		if len(page) >= limit {
			break
		}
	}
	return page, nil
}

// GenerateCandles builds count synthetic daily bars starting at start,
// drifting around basePrice.
func GenerateCandles(basePrice float64, count int, start time.Time) []model.Candle {
	candles := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		candles[i] = model.Candle{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return candles
}
