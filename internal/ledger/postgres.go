package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists postings in PostgreSQL. Balances are projections over
// the entries table, so every balance change and its audit record are the same
// write: there is no dual-write to diverge. Sufficiency checks run inside the
// same transaction as the insert, under FOR UPDATE row locks, so two concurrent
// debits cannot both pass the check.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code. Unknown
// codes report zero, matching the lazily-provisioned wallet model.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := l.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Deposit credits a wallet account against the bank funding account.
func (l *PostgresLedger) Deposit(ctx context.Context, walletCode, clientTxID, reference string, amount int64) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletAccountID, err := accountIDForCode(ctx, tx, walletCode)
	if err != nil {
		return PostingResult{}, err
	}
	fundingAccountID, err := accountIDForCode(ctx, tx, FundingBankAccountCode)
	if err != nil {
		return PostingResult{}, err
	}

	if res, err := existingPosting(ctx, tx, KindFund, clientTxID, uuid.Nil, walletAccountID); err == nil {
		return res, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return PostingResult{}, err
	}

	txID, err := insertTransaction(ctx, tx, reference, clientTxID, KindFund, StatusCompleted, nil)
	if err != nil {
		return PostingResult{}, err
	}
	if err := insertEntries(ctx, tx, txID,
		posting{fundingAccountID, -amount},
		posting{walletAccountID, amount},
	); err != nil {
		return PostingResult{}, err
	}

	walletBalance, err := balanceForAccount(ctx, tx, walletAccountID)
	if err != nil {
		return PostingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{Reference: reference, Status: StatusCompleted, ToBalance: walletBalance}, nil
}

// Transfer records a balanced posting between two accounts in the same currency.
func (l *PostgresLedger) Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID, reference string, amount int64) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromAccountID, err := accountIDForCode(ctx, tx, fromCode)
	if err != nil {
		return PostingResult{}, err
	}
	toAccountID, err := accountIDForCode(ctx, tx, toCode)
	if err != nil {
		return PostingResult{}, err
	}

	if res, err := existingPosting(ctx, tx, kind, clientTxID, fromAccountID, toAccountID); err == nil {
		return res, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return PostingResult{}, err
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return PostingResult{}, err
	}
	if fromBalance < amount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: fromCode, Available: fromBalance}
	}

	txID, err := insertTransaction(ctx, tx, reference, clientTxID, kind, StatusCompleted, nil)
	if err != nil {
		return PostingResult{}, err
	}
	if err := insertEntries(ctx, tx, txID,
		posting{fromAccountID, -amount},
		posting{toAccountID, amount},
	); err != nil {
		return PostingResult{}, err
	}

	toBalance, err := balanceForAccount(ctx, tx, toAccountID)
	if err != nil {
		return PostingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{
		Reference:   reference,
		Status:      StatusCompleted,
		FromBalance: fromBalance - amount,
		ToBalance:   toBalance,
	}, nil
}

// Convert posts a cross-currency exchange: the source wallet settles against its
// currency's liquidity account and the target wallet is credited from the target
// currency's liquidity account. The applied rate is recorded on the transaction.
func (l *PostgresLedger) Convert(ctx context.Context, p ConversionPosting) (PostingResult, error) {
	if err := validateAmount(p.FromAmount); err != nil {
		return PostingResult{}, err
	}
	if err := validateAmount(p.ToAmount); err != nil {
		return PostingResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromWalletID, err := accountIDForCode(ctx, tx, p.FromWallet)
	if err != nil {
		return PostingResult{}, err
	}
	fromLiquidityID, err := accountIDForCode(ctx, tx, p.FromLiquidity)
	if err != nil {
		return PostingResult{}, err
	}
	toLiquidityID, err := accountIDForCode(ctx, tx, p.ToLiquidity)
	if err != nil {
		return PostingResult{}, err
	}
	toWalletID, err := accountIDForCode(ctx, tx, p.ToWallet)
	if err != nil {
		return PostingResult{}, err
	}

	if res, err := existingPosting(ctx, tx, KindConversion, p.ClientTxID, fromWalletID, toWalletID); err == nil {
		return res, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return PostingResult{}, err
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromWalletID)
	if err != nil {
		return PostingResult{}, err
	}
	if fromBalance < p.FromAmount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: p.FromWallet, Available: fromBalance}
	}

	txID, err := insertTransaction(ctx, tx, p.Reference, p.ClientTxID, KindConversion, StatusCompleted, &p.Rate)
	if err != nil {
		return PostingResult{}, err
	}
	if err := insertEntries(ctx, tx, txID,
		posting{fromWalletID, -p.FromAmount},
		posting{fromLiquidityID, p.FromAmount},
		posting{toLiquidityID, -p.ToAmount},
		posting{toWalletID, p.ToAmount},
	); err != nil {
		return PostingResult{}, err
	}

	toBalance, err := balanceForAccount(ctx, tx, toWalletID)
	if err != nil {
		return PostingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{
		Reference:   p.Reference,
		Status:      StatusCompleted,
		FromBalance: fromBalance - p.FromAmount,
		ToBalance:   toBalance,
	}, nil
}

// Payout debits a wallet into a delivery-channel suspense account with the
// caller-selected status (completed for instant channels, processing for bank rails).
func (l *PostgresLedger) Payout(ctx context.Context, walletCode, destinationCode, kind, clientTxID, reference string, amount int64, status string) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}
	if status != StatusCompleted && status != StatusProcessing {
		return PostingResult{}, fmt.Errorf("invalid posting status %q", status)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletAccountID, err := accountIDForCode(ctx, tx, walletCode)
	if err != nil {
		return PostingResult{}, err
	}
	destinationID, err := accountIDForCode(ctx, tx, destinationCode)
	if err != nil {
		return PostingResult{}, err
	}

	if res, err := existingPosting(ctx, tx, kind, clientTxID, walletAccountID, uuid.Nil); err == nil {
		return res, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return PostingResult{}, err
	}

	walletBalance, err := balanceForAccount(ctx, tx, walletAccountID)
	if err != nil {
		return PostingResult{}, err
	}
	if walletBalance < amount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: walletCode, Available: walletBalance}
	}

	txID, err := insertTransaction(ctx, tx, reference, clientTxID, kind, status, nil)
	if err != nil {
		return PostingResult{}, err
	}
	if err := insertEntries(ctx, tx, txID,
		posting{walletAccountID, -amount},
		posting{destinationID, amount},
	); err != nil {
		return PostingResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{Reference: reference, Status: status, FromBalance: walletBalance - amount}, nil
}

// MarkCompleted advances a processing transaction to completed. Settling an
// already-completed transaction is a no-op.
func (l *PostgresLedger) MarkCompleted(ctx context.Context, reference string) error {
	const query = `UPDATE transactions SET status = $1 WHERE reference = $2 AND status IN ($1, $3)`
	tag, err := l.db.Exec(ctx, query, StatusCompleted, reference, StatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := l.db.QueryRow(ctx, `SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("transaction %s is %s, cannot complete", reference, status)
	}
	return nil
}

// History lists entries for the given account codes, newest first.
func (l *PostgresLedger) History(ctx context.Context, codes []string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT t.reference, t.kind, t.status, a.code, e.amount, t.rate, t.created_at
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        INNER JOIN transactions t ON t.id = e.transaction_id
        WHERE a.code = ANY($1)
        ORDER BY t.created_at DESC
        LIMIT $2`
	rows, err := l.db.Query(ctx, query, codes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Reference, &e.Kind, &e.Status, &e.AccountCode, &e.Amount, &e.Rate, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

type posting struct {
	accountID uuid.UUID
	amount    int64
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s not found", code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// existingPosting returns the recorded outcome for (kind, clientTxID) if one
// exists, rebuilding balances for the replayed response. fromID/toID may be the
// zero UUID when the corresponding side is a house account.
func existingPosting(ctx context.Context, tx pgx.Tx, kind, clientTxID string, fromID, toID uuid.UUID) (PostingResult, error) {
	const query = `SELECT reference, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var res PostingResult
	if err := tx.QueryRow(ctx, query, clientTxID, kind).Scan(&res.Reference, &res.Status); err != nil {
		return PostingResult{}, err
	}
	if fromID != uuid.Nil {
		bal, err := balanceForAccount(ctx, tx, fromID)
		if err != nil {
			return PostingResult{}, err
		}
		res.FromBalance = bal
	}
	if toID != uuid.Nil {
		bal, err := balanceForAccount(ctx, tx, toID)
		if err != nil {
			return PostingResult{}, err
		}
		res.ToBalance = bal
	}
	return res, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, reference, clientTxID, kind, status string, rate *float64) (uuid.UUID, error) {
	txID := uuid.New()
	_, err := tx.Exec(ctx, `INSERT INTO transactions (id, reference, client_tx_id, kind, status, rate)
        VALUES ($1, $2, $3, $4, $5, $6)`, txID, reference, clientTxID, kind, status, rate)
	return txID, err
}

func insertEntries(ctx context.Context, tx pgx.Tx, txID uuid.UUID, postings ...posting) error {
	for _, p := range postings {
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount)
            VALUES ($1, $2, $3, $4)`, uuid.New(), txID, p.accountID, p.amount); err != nil {
			return err
		}
	}
	return nil
}
