// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SearchConfig describes the seed search to crawl.
type SearchConfig struct {
	Expression string `mapstructure:"expression"`
	StartPage  int    `mapstructure:"start_page"`
	EndPage    int    `mapstructure:"end_page"`
	BaseURL    string `mapstructure:"base_url"`
}

// ScraperConfig governs the bounded fetch pipeline.
type ScraperConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	TimeoutMs   int    `mapstructure:"timeout_ms"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the browser-rendering fetcher. When disabled the
// pipeline falls back to the plain HTTP fetcher.
type HeadlessConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ExportConfig sets the directory for CSV/XLSX snapshots.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig controls the optional observability HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.start_page", 1)
	v.SetDefault("search.end_page", 1)
	v.SetDefault("search.base_url", "https://www.udemy.com")
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.timeout_ms", 30000)
	v.SetDefault("scraper.user_agent", "course-scraper/0.1")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("export.dir", "dataset")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Search.Expression == "" {
		return fmt.Errorf("search.expression is required")
	}
	if c.Search.StartPage <= 0 {
		return fmt.Errorf("search.start_page must be > 0")
	}
	if c.Search.EndPage < c.Search.StartPage {
		return fmt.Errorf("search.end_page must be >= search.start_page")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.TimeoutMs <= 0 {
		return fmt.Errorf("scraper.timeout_ms must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// FetchTimeout converts the per-fetch timeout knob into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutMs) * time.Millisecond
}
