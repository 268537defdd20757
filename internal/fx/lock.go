package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLockNotFound indicates no lock matches the identifier for the caller.
	ErrLockNotFound = errors.New("rate lock not found")
	// ErrLockExpired indicates the lock's validity window has passed.
	ErrLockExpired = errors.New("rate lock expired")
	// ErrLockUsed indicates the lock was already redeemed.
	ErrLockUsed = errors.New("rate lock already used")
)

// Rate lock statuses. A lock transitions active->used on redemption or
// active->expired lazily when touched past its expiry; there is no sweeper.
const (
	LockStatusActive  = "active"
	LockStatusUsed    = "used"
	LockStatusExpired = "expired"
)

// RateLock is a time-boxed commitment to honor a quoted rate for a pending
// transfer. AmountUSD is in cents.
type RateLock struct {
	ID        string
	AccountID string
	Rate      float64
	AmountUSD int64
	Status    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LockRepository persists rate locks.
type LockRepository interface {
	Create(ctx context.Context, lock RateLock) error
	Get(ctx context.Context, id string) (RateLock, error)
	// UpdateStatus transitions a lock from one status to another and reports
	// whether the transition applied, so redemption is a single conditional
	// update rather than a read-then-write.
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
}

// LockService issues and redeems rate locks backed by the quote engine.
type LockService struct {
	engine *Engine
	repo   LockRepository
	ttl    time.Duration
	now    func() time.Time
}

// NewLockService builds a lock service with the given validity window.
func NewLockService(engine *Engine, repo LockRepository, ttl time.Duration) *LockService {
	return &LockService{engine: engine, repo: repo, ttl: ttl, now: time.Now}
}

// WithLockClock overrides the service clock. Test hook.
func (s *LockService) WithLockClock(now func() time.Time) *LockService {
	s.now = now
	return s
}

// Lock quotes the current rate for the amount and persists a lock on it.
func (s *LockService) Lock(ctx context.Context, accountID string, amountUSDCents int64) (RateLock, error) {
	if amountUSDCents <= 0 {
		return RateLock{}, ErrInvalidAmount
	}

	quote, err := s.engine.Quote(ctx, float64(amountUSDCents)/100)
	if err != nil {
		return RateLock{}, err
	}

	now := s.now().UTC()
	lock := RateLock{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Rate:      quote.PBXRate,
		AmountUSD: amountUSDCents,
		Status:    LockStatusActive,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, lock); err != nil {
		return RateLock{}, fmt.Errorf("persist rate lock: %w", err)
	}
	return lock, nil
}

// Redeem consumes an active, unexpired lock and returns it with its locked
// rate. Expiry is a wall-clock comparison at redemption time.
func (s *LockService) Redeem(ctx context.Context, id, accountID string) (RateLock, error) {
	lock, err := s.repo.Get(ctx, id)
	if err != nil {
		return RateLock{}, ErrLockNotFound
	}
	if lock.AccountID != accountID {
		return RateLock{}, ErrLockNotFound
	}

	switch lock.Status {
	case LockStatusUsed:
		return RateLock{}, ErrLockUsed
	case LockStatusExpired:
		return RateLock{}, ErrLockExpired
	}

	if s.now().After(lock.ExpiresAt) {
		// best effort; the lock is unusable either way
		_, _ = s.repo.UpdateStatus(ctx, id, LockStatusActive, LockStatusExpired)
		return RateLock{}, ErrLockExpired
	}

	applied, err := s.repo.UpdateStatus(ctx, id, LockStatusActive, LockStatusUsed)
	if err != nil {
		return RateLock{}, err
	}
	if !applied {
		return RateLock{}, ErrLockUsed
	}

	lock.Status = LockStatusUsed
	return lock, nil
}
