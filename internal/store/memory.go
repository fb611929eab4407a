package store

import (
	"context"
	"sync"

	"github.com/atmx/paper-ledger/internal/model"
)

// MemoryStore implements Store in memory. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	ledger *model.Ledger
	saves  int

	// FailSave, when set, is returned from every Save.
	FailSave error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ledger == nil {
		return nil, ErrNotFound
	}
	// Hand out a copy to avoid external mutation.
	return s.ledger.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, l *model.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSave != nil {
		return s.FailSave
	}
	s.ledger = l.Clone()
	s.saves++
	return nil
}

// Saves returns how many successful saves the store has seen.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
