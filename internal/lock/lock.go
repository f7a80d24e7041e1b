// Package lock provides a named mutual-exclusion lock backed by the record
// store, so at most one hygiene run executes across all service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrBusy reports that the lock is held by another run.
var ErrBusy = errors.New("lock is busy")

// DefaultTTL bounds how long a crashed holder can wedge the lock.
const DefaultTTL = 60 * time.Second

// WorkerLock is a named exclusive lock row. Token identifies the acquirer;
// a row past LockedUntil is stale and may be reclaimed by anyone.
type WorkerLock struct {
	Name        string
	Token       string
	LockedUntil time.Time
}

// Store is the persistence surface the manager needs. Insert must fail when
// a row for the name already exists.
type Store interface {
	DeleteExpired(ctx context.Context, name string, now time.Time) error
	Insert(ctx context.Context, l WorkerLock) error
	DeleteOwned(ctx context.Context, name, token string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces owner tokens.
type IDGenerator interface {
	NewID() (string, error)
}

// Manager acquires and releases named TTL locks.
type Manager struct {
	store  Store
	clock  Clock
	ids    IDGenerator
	logger *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(store Store, clock Clock, ids IDGenerator, logger *zap.Logger) *Manager {
	return &Manager{store: store, clock: clock, ids: ids, logger: logger}
}

// Acquire claims the named lock for ttl and returns an owner token required
// by Release. Any expired row for the name is purged first, so a crashed
// prior holder never wedges the worker permanently. Contention, and any
// store ambiguity during the insert, is reported as ErrBusy.
func (m *Manager) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.clock.Now()

	// Stale-lock reclamation is best effort; a failure here just means the
	// insert below decides.
	if err := m.store.DeleteExpired(ctx, name, now); err != nil {
		m.logger.Warn("stale lock cleanup failed", zap.String("lock", name), zap.Error(err))
	}

	token, err := m.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	row := WorkerLock{
		Name:        name,
		Token:       token,
		LockedUntil: now.Add(ttl),
	}
	if err := m.store.Insert(ctx, row); err != nil {
		m.logger.Info("lock acquire contended", zap.String("lock", name), zap.Error(err))
		return "", ErrBusy
	}
	return token, nil
}

// Release drops the named lock if token still owns it. Best effort: a
// mismatched token (another run reclaimed an expired row) or a store error
// is logged, never surfaced.
func (m *Manager) Release(ctx context.Context, name, token string) {
	if err := m.store.DeleteOwned(ctx, name, token); err != nil {
		m.logger.Warn("lock release failed", zap.String("lock", name), zap.Error(err))
	}
}
