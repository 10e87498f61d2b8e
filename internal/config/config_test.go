package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("a missing config file should fall back to defaults: %v", err)
	}
	if cfg.Market.Symbol != "BTC/USDT" || cfg.Market.Exchange != "binance" {
		t.Errorf("market defaults = %s on %s", cfg.Market.Symbol, cfg.Market.Exchange)
	}
	if cfg.Forecast.HorizonDays != 730 || cfg.Forecast.Seed != 42 {
		t.Errorf("forecast defaults = %d days, seed %d", cfg.Forecast.HorizonDays, cfg.Forecast.Seed)
	}
	if cfg.Provider.Timeframe != "1d" || cfg.Provider.RateLimitMs != 1200 {
		t.Errorf("provider defaults = %s, %dms", cfg.Provider.Timeframe, cfg.Provider.RateLimitMs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
market:
  symbol: ETH/USDT
  exchange: kraken
forecast:
  trees: 25
`)
	t.Setenv("COINSCOPE_SYMBOL", "SOL/USDT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.Symbol != "SOL/USDT" {
		t.Errorf("env override lost: symbol = %s", cfg.Market.Symbol)
	}
	if cfg.Market.Exchange != "kraken" {
		t.Errorf("yaml value lost: exchange = %s", cfg.Market.Exchange)
	}
	if cfg.Forecast.Trees != 25 {
		t.Errorf("trees = %d, want 25", cfg.Forecast.Trees)
	}
}

func TestDateRangeExplicit(t *testing.T) {
	cfg := &Config{}
	cfg.Market.StartDate = "2023-01-01"
	cfg.Market.EndDate = "2024-01-01"

	start, end, err := cfg.DateRange()
	if err != nil {
		t.Fatal(err)
	}
	if start.Format("2006-01-02") != "2023-01-01" || end.Format("2006-01-02") != "2024-01-01" {
		t.Errorf("range = %v .. %v", start, end)
	}
}

func TestDateRangeNowSentinel(t *testing.T) {
	cfg := &Config{}
	cfg.Market.EndDate = "now"

	start, end, err := cfg.DateRange()
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(end) > time.Minute {
		t.Errorf("end = %v, want roughly now", end)
	}
	if got := end.AddDate(-1, 0, 0); !start.Equal(got) {
		t.Errorf("start = %v, want one year before end", start)
	}
}

func TestDateRangeInverted(t *testing.T) {
	cfg := &Config{}
	cfg.Market.StartDate = "2024-06-01"
	cfg.Market.EndDate = "2024-01-01"

	if _, _, err := cfg.DateRange(); err == nil {
		t.Fatal("start after end should be rejected")
	}
}

func TestValidateRejectsBadDates(t *testing.T) {
	cfg := &Config{}
	cfg.Market.Symbol = "BTC/USDT"
	cfg.Market.Exchange = "binance"
	cfg.Data.CSVFilePath = "data/candles.csv"
	cfg.Market.StartDate = "01/02/2023"
	cfg.Forecast.Lookback = 60

	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed start_date should fail validation")
	}
}
