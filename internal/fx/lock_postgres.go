package fx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLockRepository stores rate locks in PostgreSQL.
type PostgresLockRepository struct {
	db *pgxpool.Pool
}

// NewPostgresLockRepository builds a repository backed by PostgreSQL.
func NewPostgresLockRepository(db *pgxpool.Pool) *PostgresLockRepository {
	return &PostgresLockRepository{db: db}
}

// Create inserts a rate lock record.
func (r *PostgresLockRepository) Create(ctx context.Context, lock RateLock) error {
	lockID, err := uuid.Parse(lock.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO rate_locks (id, account_id, rate, amount_usd_cents, status, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lockID, lock.AccountID, lock.Rate, lock.AmountUSD, lock.Status, lock.ExpiresAt.UTC(), lock.CreatedAt.UTC())
	return err
}

// Get fetches a rate lock by identifier.
func (r *PostgresLockRepository) Get(ctx context.Context, id string) (RateLock, error) {
	lockID, err := uuid.Parse(id)
	if err != nil {
		return RateLock{}, ErrLockNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, account_id, rate, amount_usd_cents, status, expires_at, created_at
        FROM rate_locks WHERE id = $1`, lockID)

	var lock RateLock
	var idVal uuid.UUID
	var expiresAt, createdAt time.Time
	if err := row.Scan(&idVal, &lock.AccountID, &lock.Rate, &lock.AmountUSD, &lock.Status, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RateLock{}, ErrLockNotFound
		}
		return RateLock{}, err
	}
	lock.ID = idVal.String()
	lock.ExpiresAt = expiresAt.UTC()
	lock.CreatedAt = createdAt.UTC()
	return lock, nil
}

// UpdateStatus applies the transition as a single conditional update.
func (r *PostgresLockRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	lockID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrLockNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE rate_locks SET status = $1 WHERE id = $2 AND status = $3`, to, lockID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
