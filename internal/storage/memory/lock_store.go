package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/compace/hygiene/internal/lock"
)

// LockStore is an in-memory lock.Store.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]lock.WorkerLock
}

// NewLockStore constructs a LockStore.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]lock.WorkerLock)}
}

// DeleteExpired purges a stale row for name, if any.
func (s *LockStore) DeleteExpired(_ context.Context, name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[name]; ok && l.LockedUntil.Before(now) {
		delete(s.locks, name)
	}
	return nil
}

// Insert creates the lock row, failing while one exists.
func (s *LockStore) Insert(_ context.Context, l lock.WorkerLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[l.Name]; held {
		return errors.New("lock row exists")
	}
	s.locks[l.Name] = l
	return nil
}

// DeleteOwned removes the lock row only when token still owns it.
func (s *LockStore) DeleteOwned(_ context.Context, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[name]; ok && l.Token == token {
		delete(s.locks, name)
	}
	return nil
}
