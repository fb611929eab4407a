// Package bootstrap wires configured components together for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-ledger/internal/config"
	"github.com/atmx/paper-ledger/internal/ledger"
	"github.com/atmx/paper-ledger/internal/quote"
	"github.com/atmx/paper-ledger/internal/store"
)

// OpenStore builds the configured store chain. The returned cleanup closes
// any pools or clients that were opened and is safe to call on error.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	var st store.Store
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("database connection failed: %w", err)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool, cfg.Store.LedgerName)
		if err := pg.Migrate(ctx); err != nil {
			return nil, closeAll, err
		}
		st = pg
		logger.Info("connected to PostgreSQL", "ledger", cfg.Store.LedgerName)
	case config.DriverMemory:
		logger.Warn("using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	default:
		fs := store.NewFileStore(cfg.Store.Path)
		st = fs
		logger.Info("using file store", "path", fs.Path())
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.Cache.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("invalid cache.redis_url: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Store.LedgerName, cfg.Cache.TTL)
		logger.Info("Redis cache enabled", "ttl", cfg.Cache.TTL)
	}

	return st, closeAll, nil
}

// QuoteSource returns the configured market data source, or nil when quotes
// are disabled (positions are then marked at their entry price).
func QuoteSource(cfg *config.Config) quote.Source {
	if cfg.Quote.Disabled {
		return nil
	}
	return quote.NewCLOBClient(cfg.Quote.CLOBURL, cfg.Quote.Timeout,
		quote.WithMaxTries(uint(cfg.Quote.MaxTries)))
}

// Engine builds a ledger engine from configuration.
func Engine(cfg *config.Config, st store.Store, src quote.Source, logger *slog.Logger) *ledger.Engine {
	dust := decimal.NewFromFloat(cfg.Ledger.DustWarnThreshold)
	return ledger.NewEngine(st, src, ledger.Config{
		CloseEpsilon:      decimal.NewFromFloat(cfg.Ledger.CloseEpsilon),
		DustWarnThreshold: &dust,
		QuoteConcurrency:  cfg.Quote.Concurrency,
		Logger:            logger,
	})
}
