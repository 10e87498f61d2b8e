package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"CoinScope/internal/model"
)

// RESTProvider implements Provider against a REST OHLCV endpoint with the
// shape GET {base}/api/v1/ohlcv?symbol=&timeframe=&since=&limit=. The
// since parameter and returned timestamps are milliseconds since epoch.
type RESTProvider struct {
	BaseURL  string
	APIKey   string
	Exchange string
	Client   *http.Client
}

// NewRESTProvider creates a REST provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, exchange, proxyURL string) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTProvider{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Exchange: exchange,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (p *RESTProvider) Name() string { return p.Exchange }

// restCandle is the expected JSON shape of one candle.
type restCandle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// restError is the body shape of a well-formed error response.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *RESTProvider) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/api/v1/ohlcv?symbol=%s&timeframe=%s&since=%d&limit=%d",
		p.BaseURL, url.QueryEscape(symbol), timeframe, since.UnixMilli(), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &model.NetworkError{Op: "fetch ohlcv", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		detail := string(body)
		var apiErr restError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			detail = apiErr.Message
		}
		return nil, &model.ProviderError{Op: "fetch ohlcv", Status: resp.StatusCode, Detail: detail}
	}

	var raw []restCandle
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &model.NetworkError{Op: "decode ohlcv", Err: err}
	}

	candles := make([]model.Candle, len(raw))
	for i, rc := range raw {
		candles[i] = model.Candle{
			Time:   time.UnixMilli(rc.Timestamp).UTC(),
			Open:   rc.Open,
			High:   rc.High,
			Low:    rc.Low,
			Close:  rc.Close,
			Volume: rc.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}
