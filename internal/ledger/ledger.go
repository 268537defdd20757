package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionNotFound indicates no transaction matches the given reference.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// InsufficientFundsError carries the available balance alongside the rejection so
// callers can disclose how much the account actually holds.
type InsufficientFundsError struct {
	AccountCode string
	Available   int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available %d", e.AccountCode, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold for the typed error.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Posting statuses. Bank-style payouts start as processing and are advanced to
// completed by a settlement step; instant channels complete immediately.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
)

// Posting kinds recorded on transactions.
const (
	KindFund             = "fund"
	KindInternalTransfer = "internal_transfer"
	KindSubWalletMove    = "subwallet_move"
	KindConversion       = "fx_conversion"
	KindPayout           = "payout"
	KindBillPay          = "bill_pay"
)

// Supported wallet currencies. Amounts are integer minor units (cents, centavos).
const (
	CurrencyUSD  = "USD"
	CurrencyPHP  = "PHP"
	CurrencyUSDC = "USDC"
)

// Internal account codes used as counterparts to wallet postings.
const (
	FundingBankAccountCode = "funding:bank"
	BillerAccountCode      = "biller:external"
)

// WalletAccountCode derives the ledger account code for a user's currency balance.
func WalletAccountCode(accountID, currency string) string {
	return fmt.Sprintf("wallet:%s:%s", accountID, strings.ToUpper(currency))
}

// SubWalletAccountCode derives the ledger account code for a named sub-wallet.
func SubWalletAccountCode(accountID, name string) string {
	return fmt.Sprintf("subwallet:%s:%s", accountID, strings.ToLower(name))
}

// LiquidityAccountCode is the per-currency house account conversions settle against.
func LiquidityAccountCode(currency string) string {
	return fmt.Sprintf("liquidity:%s", strings.ToUpper(currency))
}

// PayoutChannelAccountCode is the suspense account for an external delivery channel.
func PayoutChannelAccountCode(channel string) string {
	return fmt.Sprintf("payout:%s", strings.ToLower(channel))
}

// NewReference generates a client-facing transaction reference of the form
// {prefix}_{epoch-millis}_{suffix}.
func NewReference(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:6])
}

// PostingResult captures the outcome of a ledger posting. FromBalance and
// ToBalance are the post-commit balances of the debited and credited wallet
// accounts; postings against house accounts report zero for that side.
type PostingResult struct {
	Reference   string
	Status      string
	FromBalance int64
	ToBalance   int64
}

// ConversionPosting describes a cross-currency posting: the source wallet
// account is debited against its currency's liquidity account, and the target
// wallet account is credited from its currency's liquidity account, keeping
// each currency's entries balanced.
type ConversionPosting struct {
	FromWallet    string
	ToWallet      string
	FromLiquidity string
	ToLiquidity   string
	ClientTxID    string
	Reference     string
	FromAmount    int64
	ToAmount      int64
	Rate          float64
}

// Entry is a single balance-affecting line joined with its transaction, used
// for audit and history display.
type Entry struct {
	Reference   string
	Kind        string
	Status      string
	AccountCode string
	Amount      int64
	Rate        *float64
	CreatedAt   time.Time
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Every mutating call is idempotent on (kind, clientTxID): a replay returns the
// original result together with ErrDuplicateTransaction.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Deposit(ctx context.Context, walletCode, clientTxID, reference string, amount int64) (PostingResult, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID, reference string, amount int64) (PostingResult, error)
	Convert(ctx context.Context, posting ConversionPosting) (PostingResult, error)
	Payout(ctx context.Context, walletCode, destinationCode, kind, clientTxID, reference string, amount int64, status string) (PostingResult, error)
	MarkCompleted(ctx context.Context, reference string) error
	History(ctx context.Context, codes []string, limit int) ([]Entry, error)
}

func idempotencyKey(kind, clientTxID string) string {
	return kind + ":" + clientTxID
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}
