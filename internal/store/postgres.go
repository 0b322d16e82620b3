package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores the snapshot blob in a single row, keyed the same way as the
// redis backend so the two are interchangeable behind Store.
type Postgres struct {
	db  *pgxpool.Pool
	key string
}

func NewPostgres(db *pgxpool.Pool, key string) *Postgres {
	return &Postgres{
		db:  db,
		key: key,
	}
}

// Migrate creates the snapshots table if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS snapshots (
	key         TEXT PRIMARY KEY,
	data        BYTEA NOT NULL,
	update_time TIMESTAMPTZ NOT NULL
);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	return nil
}

func (s *Postgres) Load(ctx context.Context) ([]byte, error) {
	const stmt = `SELECT data FROM snapshots WHERE key = $1;`

	var data []byte
	err := s.db.QueryRow(ctx, stmt, s.key).Scan(&data)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %q: %w", s.key, err)
	}

	return data, nil
}

func (s *Postgres) Save(ctx context.Context, data []byte) error {
	const stmt = `
INSERT INTO snapshots (key, data, update_time)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, update_time = EXCLUDED.update_time;`

	if _, err := s.db.Exec(ctx, stmt, s.key, data, time.Now()); err != nil {
		return fmt.Errorf("store: save %q: %w", s.key, err)
	}

	return nil
}
