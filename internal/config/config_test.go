package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-ledger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.DriverFile, cfg.Store.Driver)
	assert.Equal(t, "paper_trades.json", cfg.Store.Path)
	assert.Equal(t, "default", cfg.Store.LedgerName)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Quote.CLOBURL)
	assert.Equal(t, 5*time.Second, cfg.Quote.Timeout)
	assert.Equal(t, 3, cfg.Quote.MaxTries)
	assert.Equal(t, 8, cfg.Quote.Concurrency)
	assert.False(t, cfg.Quote.Disabled)
	assert.InDelta(t, 0.01, cfg.Ledger.CloseEpsilon, 1e-12)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PAPER_PORT", "9090")
	t.Setenv("PAPER_STORE_PATH", "/var/lib/paper/ledger.json")
	t.Setenv("PAPER_QUOTE_DISABLED", "true")
	t.Setenv("PAPER_QUOTE_TIMEOUT", "750ms")
	t.Setenv("PAPER_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/var/lib/paper/ledger.json", cfg.Store.Path)
	assert.True(t, cfg.Quote.Disabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Quote.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: memory
quote:
  concurrency: 2
cache:
  ttl: 1m
ledger:
  close_epsilon: 0.001
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Quote.Concurrency)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.InDelta(t, 0.001, cfg.Ledger.CloseEpsilon, 1e-12)
	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.Quote.MaxTries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"PAPER_STORE_DRIVER": "sqlite"}, `unknown store.driver "sqlite"`},
		{"postgres without url", map[string]string{"PAPER_STORE_DRIVER": "postgres"}, "store.database_url is required"},
		{"zero epsilon", map[string]string{"PAPER_LEDGER_CLOSE_EPSILON": "0"}, "close_epsilon must be positive"},
		{"zero tries", map[string]string{"PAPER_QUOTE_MAX_TRIES": "0"}, "max_tries must be at least 1"},
		{"cache on memory", map[string]string{
			"PAPER_STORE_DRIVER":    "memory",
			"PAPER_CACHE_REDIS_URL": "redis://localhost:6379/0",
		}, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &config.Config{}
	for level, want := range map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		cfg.Log.Level = level
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
