package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/compace/hygiene/internal/lock"
)

// LockStore implements lock.Store on Postgres. The primary key on name makes
// Insert fail while a row exists, which is the mutual exclusion.
type LockStore struct {
	pool Pool
}

// NewLockStore constructs a store over an existing pool.
func NewLockStore(pool Pool) (*LockStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LockStore{pool: pool}, nil
}

// DeleteExpired purges a stale row for name, if any.
func (s *LockStore) DeleteExpired(ctx context.Context, name string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM worker_locks WHERE name = $1 AND locked_until < $2`,
		name, now)
	if err != nil {
		return fmt.Errorf("delete expired lock: %w", err)
	}
	return nil
}

// Insert creates the lock row, failing on the primary key when held.
func (s *LockStore) Insert(ctx context.Context, l lock.WorkerLock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO worker_locks (name, token, locked_until) VALUES ($1, $2, $3)`,
		l.Name, l.Token, l.LockedUntil)
	if err != nil {
		return fmt.Errorf("insert lock: %w", err)
	}
	return nil
}

// DeleteOwned removes the lock row only when token still owns it.
func (s *LockStore) DeleteOwned(ctx context.Context, name, token string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM worker_locks WHERE name = $1 AND token = $2`,
		name, token)
	if err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
