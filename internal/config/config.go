// Package config loads paper-ledger settings from defaults, an optional
// config file and PAPER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port   string       `mapstructure:"port"`
	Store  StoreConfig  `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Quote  QuoteConfig  `mapstructure:"quote"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Log    LogConfig    `mapstructure:"log"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
	LedgerName  string `mapstructure:"ledger_name"`
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type QuoteConfig struct {
	CLOBURL     string        `mapstructure:"clob_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTries    int           `mapstructure:"max_tries"`
	Concurrency int           `mapstructure:"concurrency"`
	Disabled    bool          `mapstructure:"disabled"`
}

type LedgerConfig struct {
	CloseEpsilon      float64 `mapstructure:"close_epsilon"`
	DustWarnThreshold float64 `mapstructure:"dust_warn_threshold"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const EnvPrefix = "PAPER"

var defaults = map[string]interface{}{
	"port":                       "8080",
	"store.driver":               DriverFile,
	"store.path":                 "paper_trades.json",
	"store.database_url":         "",
	"store.ledger_name":          "default",
	"cache.redis_url":            "",
	"cache.ttl":                  30 * time.Second,
	"quote.clob_url":             "https://clob.polymarket.com",
	"quote.timeout":              5 * time.Second,
	"quote.max_tries":            3,
	"quote.concurrency":          8,
	"quote.disabled":             false,
	"ledger.close_epsilon":       0.01,
	"ledger.dust_warn_threshold": 0.01,
	"log.level":                  "info",
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file driver")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Ledger.CloseEpsilon <= 0 {
		return errors.New("ledger.close_epsilon must be positive")
	}
	if c.Ledger.DustWarnThreshold < 0 {
		return errors.New("ledger.dust_warn_threshold must not be negative")
	}
	if c.Quote.MaxTries < 1 {
		return errors.New("quote.max_tries must be at least 1")
	}
	if c.Quote.Concurrency < 1 {
		return errors.New("quote.concurrency must be at least 1")
	}
	if c.Cache.RedisURL != "" && c.Store.Driver == DriverMemory {
		return errors.New("cache.redis_url cannot be combined with the memory driver")
	}
	return nil
}

// SlogLevel maps log.level to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
