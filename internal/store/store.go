// Package store defines the persistence interface for the paper ledger.
// The ledger is stored as a single document that is read in full and
// overwritten in full. Implementations include a JSON file (default),
// PostgreSQL (one JSONB row per ledger), a Redis read-through cache and
// an in-memory store for testing.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atmx/paper-ledger/internal/model"
)

var (
	// ErrNotFound is returned by Load when no document has been saved yet.
	ErrNotFound = errors.New("store: ledger not found")

	// ErrMalformed is returned by Load for documents that parse as JSON but
	// are not a ledger, such as a bare null or a missing startTime.
	ErrMalformed = errors.New("store: malformed ledger document")
)

// Store is the persistence interface for the whole ledger document.
type Store interface {
	// Load reads the full ledger document.
	Load(ctx context.Context) (*model.Ledger, error)

	// Save overwrites the full ledger document.
	Save(ctx context.Context, l *model.Ledger) error
}

// decodeLedger parses a persisted document.
func decodeLedger(data []byte) (*model.Ledger, error) {
	var l model.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if l.StartTime <= 0 {
		return nil, fmt.Errorf("%w: startTime must be a positive epoch millisecond", ErrMalformed)
	}
	l.Normalize()
	return &l, nil
}
