package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet record exists for the account.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	// Upsert creates the wallet record if missing; existing records are untouched.
	Upsert(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, accountID string) (Wallet, error)
	// Touch stamps updated_at after a balance mutation.
	Touch(ctx context.Context, accountID string, at time.Time) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the wallet record, ignoring conflicts on account_id.
func (r *PostgresRepository) Upsert(ctx context.Context, wallet Wallet) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (account_id, created_at, updated_at)
        VALUES ($1, $2, $3) ON CONFLICT (account_id) DO NOTHING`,
		wallet.AccountID, wallet.CreatedAt.UTC(), wallet.UpdatedAt.UTC())
	return err
}

// Get fetches wallet metadata by account identifier.
func (r *PostgresRepository) Get(ctx context.Context, accountID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT account_id, created_at, updated_at FROM wallets WHERE account_id = $1`, accountID)
	var w Wallet
	var createdAt, updatedAt time.Time
	if err := row.Scan(&w.AccountID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

// Touch updates the wallet's updated_at stamp.
func (r *PostgresRepository) Touch(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE wallets SET updated_at = $1 WHERE account_id = $2`, at.UTC(), accountID)
	return err
}
