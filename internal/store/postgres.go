package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/paper-ledger/internal/model"
)

// PostgresStore keeps each named ledger as one JSONB document row. The
// document is the same shape as the file format, so ledgers can move
// between backends unchanged.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresStore creates a PostgreSQL-backed store for the ledger called name.
func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
	if name == "" {
		name = "default"
	}
	return &PostgresStore{pool: pool, name: name}
}

// Migrate creates the ledger table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS paper_ledgers (
			name       TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate paper_ledgers: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*model.Ledger, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM paper_ledgers WHERE name = $1`, s.name).
		Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger %s: %w", s.name, err)
	}

	l, err := decodeLedger(doc)
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", s.name, err)
	}
	return l, nil
}

func (s *PostgresStore) Save(ctx context.Context, l *model.Ledger) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO paper_ledgers (name, document, updated_at)
		 VALUES ($1, $2::JSONB, now())
		 ON CONFLICT (name) DO UPDATE
		 SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		s.name, string(doc),
	)
	if err != nil {
		return fmt.Errorf("save ledger %s: %w", s.name, err)
	}
	return nil
}
