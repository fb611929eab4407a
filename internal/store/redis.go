package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/paper-ledger/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Saves go to the primary first and then refresh the cache; loads check
// Redis first and fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	name    string
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, name string, ttl time.Duration) *CachedStore {
	if name == "" {
		name = "default"
	}
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		name:    name,
	}
}

func (s *CachedStore) Load(ctx context.Context) (*model.Ledger, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, ledgerKey(s.name)).Bytes()
	if err == nil {
		if l, err := decodeLedger(data); err == nil {
			return l, nil
		}
	}

	// Cache miss: read from primary.
	l, err := s.primary.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheLedger(ctx, l)
	return l, nil
}

func (s *CachedStore) Save(ctx context.Context, l *model.Ledger) error {
	if err := s.primary.Save(ctx, l); err != nil {
		// Drop the cached copy so it cannot outlive the primary's state.
		s.rdb.Del(ctx, ledgerKey(s.name))
		return err
	}
	s.cacheLedger(ctx, l)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheLedger(ctx context.Context, l *model.Ledger) {
	if data, err := json.Marshal(l); err == nil {
		s.rdb.Set(ctx, ledgerKey(s.name), data, s.ttl)
	}
}

func ledgerKey(name string) string { return fmt.Sprintf("paper-ledger:%s", name) }
