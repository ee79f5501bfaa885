// Package sqlite implements the lock store on SQLite for standalone mode.
// A single-process deployment still wants real lock rows: the worker pool
// runs jobs concurrently, and locks must survive a restart within their TTL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store keeps expiries as unix seconds; SQLite has no timestamptz.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Acquire claims key for ttl, taking over expired rows.
func (s *Store) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?`,
		key, now.Format(time.RFC3339), now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return n == 1, nil
}

// Release deletes key unconditionally.
func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE key = ?`, key); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Sweep removes expired rows.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep locks: %w", err)
	}
	return res.RowsAffected()
}
