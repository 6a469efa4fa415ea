// Package config loads chartd configuration: process settings from the
// environment (and an optional .env file) and chart settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"trading-chartv1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Chart
	Symbol       string          `env:"CHART_SYMBOL" envDefault:"EURUSD"`
	Timeframe    model.Timeframe `env:"CHART_TIMEFRAME" envDefault:"1M"`
	Width        float64         `env:"CHART_WIDTH" envDefault:"1200"`
	Height       float64         `env:"CHART_HEIGHT" envDefault:"600"`
	SettingsPath string          `env:"CHART_SETTINGS" envDefault:"chart.yaml"`
	HistoryLimit int             `env:"HISTORY_LIMIT" envDefault:"500"`
	MaxCandles   int             `env:"MAX_CANDLES" envDefault:"5000"`
	LoadTimeout  time.Duration   `env:"LOAD_TIMEOUT" envDefault:"30s"`
	// HistorySource is "sqlite", "redis" or "none".
	HistorySource string `env:"HISTORY_SOURCE" envDefault:"sqlite"`

	// Feed
	FeedURL     string   `env:"FEED_URL" envDefault:"ws://localhost:8765/ws"`
	FeedSymbols []string `env:"FEED_SYMBOLS" envSeparator:","`

	// Infrastructure; empty SQLitePath or RedisAddr disables that sink.
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9090"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/candles.db"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Maintenance
	RetentionDays int    `env:"RETENTION_DAYS" envDefault:"90"`
	PruneSchedule string `env:"PRUNE_SCHEDULE" envDefault:"0 3 * * *"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	// Ignore error if .env is missing
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		return errors.New("config: CHART_SYMBOL is empty")
	}
	switch c.HistorySource {
	case "sqlite", "redis", "none":
	default:
		return fmt.Errorf("config: HISTORY_SOURCE %q (want sqlite, redis or none)", c.HistorySource)
	}
	if c.HistorySource == "sqlite" && c.SQLitePath == "" {
		return errors.New("config: HISTORY_SOURCE=sqlite needs SQLITE_PATH")
	}
	if c.HistorySource == "redis" && c.RedisAddr == "" {
		return errors.New("config: HISTORY_SOURCE=redis needs REDIS_ADDR")
	}
	if len(c.FeedSymbols) == 0 {
		c.FeedSymbols = []string{c.Symbol}
	}
	for i, s := range c.FeedSymbols {
		c.FeedSymbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return nil
}

// Retention is how long journal rows are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
