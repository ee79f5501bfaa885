// Package pg implements the lock store on Postgres for managed mode, where
// multiple worker processes share one lock table.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store emulates SETNX+EXPIRE with a single upsert: the insert wins when the
// key is absent, the conditional update wins when the previous holder's TTL
// has lapsed. Either way exactly one statement decides ownership.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Acquire claims key for ttl. Returns false when another holder is live.
func (s *Store) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE locks.expires_at <= now()`,
		key, now.Format(time.RFC3339), now.Add(ttl),
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE key = $1`, key); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Sweep removes expired rows. Correctness never depends on the sweep (the
// acquire statement treats expired rows as absent); this keeps the table
// from accumulating rows for keys that are never contended again.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep locks: %w", err)
	}
	return res.RowsAffected()
}
