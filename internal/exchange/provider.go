package exchange

import (
	"context"
	"fmt"
	"time"

	"CoinScope/internal/model"
)

// Provider is a paginated OHLCV market-data source. FetchOHLCV returns up
// to limit candles at or after since, oldest first. Implementations report
// transport failures as *model.NetworkError and well-formed error
// responses as *model.ProviderError.
type Provider interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]model.Candle, error)
	Name() string
}

// ParseTimeframe converts a provider timeframe string ("1m", "1h", "4h",
// "1d", "1w") into its period duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", tf)
}
