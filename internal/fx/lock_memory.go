package fx

import (
	"context"
	"errors"
	"sync"
)

type memoryLockRepository struct {
	mu    sync.RWMutex
	locks map[string]RateLock
}

// NewMemoryLockRepository builds an in-memory lock store for tests and dev mode.
func NewMemoryLockRepository() LockRepository {
	return &memoryLockRepository{locks: make(map[string]RateLock)}
}

func (r *memoryLockRepository) Create(_ context.Context, lock RateLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.locks[lock.ID]; exists {
		return errors.New("lock exists")
	}
	r.locks[lock.ID] = lock
	return nil
}

func (r *memoryLockRepository) Get(_ context.Context, id string) (RateLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lock, ok := r.locks[id]
	if !ok {
		return RateLock{}, ErrLockNotFound
	}
	return lock, nil
}

func (r *memoryLockRepository) UpdateStatus(_ context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		return false, ErrLockNotFound
	}
	if lock.Status != from {
		return false, nil
	}
	lock.Status = to
	r.locks[id] = lock
	return true, nil
}
