package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"CoinScope/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Market struct {
		Symbol    string `yaml:"symbol"`
		Exchange  string `yaml:"exchange"`
		StartDate string `yaml:"start_date"` // YYYY-MM-DD, empty = one year ago
		EndDate   string `yaml:"end_date"`   // YYYY-MM-DD, empty or "now" = current time
	} `yaml:"market"`
	Data struct {
		CSVFilePath string `yaml:"csv_file_path"`
		OutputDir   string `yaml:"output_dir"`
	} `yaml:"data"`
	Provider struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Timeframe   string `yaml:"timeframe"`
		PageLimit   int    `yaml:"page_limit"`
		RateLimitMs int    `yaml:"rate_limit_ms"`
		MaxRetries  int    `yaml:"max_retries"`
	} `yaml:"provider"`
	Forecast struct {
		HorizonDays int   `yaml:"horizon_days"`
		Lookback    int   `yaml:"lookback"`
		Trees       int   `yaml:"trees"`
		MinExamples int   `yaml:"min_examples"`
		Seed        int64 `yaml:"seed"`
	} `yaml:"forecast"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"` // empty = run once and exit
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A .env file next to the process is honored if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("COINSCOPE_SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("COINSCOPE_EXCHANGE"); v != "" {
		cfg.Market.Exchange = v
	}
	if v := os.Getenv("COINSCOPE_CSV_PATH"); v != "" {
		cfg.Data.CSVFilePath = v
	}
	if v := os.Getenv("COINSCOPE_OUTPUT_DIR"); v != "" {
		cfg.Data.OutputDir = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("FORECAST_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Forecast.Seed = seed
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = "BTC/USDT"
	}
	if cfg.Market.Exchange == "" {
		cfg.Market.Exchange = "binance"
	}
	if cfg.Data.CSVFilePath == "" {
		cfg.Data.CSVFilePath = "data/candles.csv"
	}
	if cfg.Data.OutputDir == "" {
		cfg.Data.OutputDir = "output"
	}
	if cfg.Provider.Timeframe == "" {
		cfg.Provider.Timeframe = "1d"
	}
	if cfg.Provider.PageLimit == 0 {
		cfg.Provider.PageLimit = 1000
	}
	if cfg.Provider.RateLimitMs == 0 {
		cfg.Provider.RateLimitMs = 1200
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Forecast.HorizonDays == 0 {
		cfg.Forecast.HorizonDays = 730
	}
	if cfg.Forecast.Lookback == 0 {
		cfg.Forecast.Lookback = 60
	}
	if cfg.Forecast.Trees == 0 {
		cfg.Forecast.Trees = 100
	}
	if cfg.Forecast.MinExamples == 0 {
		cfg.Forecast.MinExamples = 200
	}
	if cfg.Forecast.Seed == 0 {
		cfg.Forecast.Seed = 42
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/coinscope.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and parseable.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol is required")
	}
	if c.Market.Exchange == "" {
		return fmt.Errorf("market.exchange is required")
	}
	if c.Data.CSVFilePath == "" {
		return fmt.Errorf("data.csv_file_path is required")
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	if c.Forecast.Lookback < 1 {
		return fmt.Errorf("forecast.lookback must be positive")
	}
	return nil
}

// Key returns the SeriesKey this configuration targets.
func (c *Config) Key() model.SeriesKey {
	return model.SeriesKey{Symbol: c.Market.Symbol, Exchange: c.Market.Exchange}
}

// DateRange resolves start_date and end_date. An empty end date or the
// literal "now" means the current time; an empty start date defaults to
// one year before the end.
func (c *Config) DateRange() (start, end time.Time, err error) {
	end = time.Now().UTC()
	if c.Market.EndDate != "" && c.Market.EndDate != "now" {
		end, err = time.Parse("2006-01-02", c.Market.EndDate)
		if err != nil {
			return start, end, fmt.Errorf("parse end_date: %w", err)
		}
	}
	start = end.AddDate(-1, 0, 0)
	if c.Market.StartDate != "" {
		start, err = time.Parse("2006-01-02", c.Market.StartDate)
		if err != nil {
			return start, end, fmt.Errorf("parse start_date: %w", err)
		}
	}
	if !start.Before(end) {
		return start, end, fmt.Errorf("start_date %s is not before end_date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

// AnalysisConfig builds the per-invocation analysis config consumed by the
// pipeline.
func (c *Config) AnalysisConfig() (model.AnalysisConfig, error) {
	start, end, err := c.DateRange()
	if err != nil {
		return model.AnalysisConfig{}, err
	}
	return model.AnalysisConfig{
		Start:     start,
		End:       end,
		CSVPath:   c.Data.CSVFilePath,
		OutputDir: c.Data.OutputDir,
	}, nil
}
