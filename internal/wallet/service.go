package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
)

// Move directions between the main USD balance and a sub-wallet.
const (
	MoveToSub   = "to_sub"
	MoveFromSub = "from_sub"
)

// Service exposes wallet operations backed by the ledger. Wallets are
// provisioned lazily on first read or write and never deleted.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledgerBackend ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledgerBackend}
}

// Open ensures the wallet record and its ledger accounts exist.
func (s *Service) Open(ctx context.Context, accountID identity.AccountID) error {
	now := time.Now().UTC()
	if err := s.repo.Upsert(ctx, Wallet{AccountID: accountID.String(), CreatedAt: now, UpdatedAt: now}); err != nil {
		return fmt.Errorf("provision wallet: %w", err)
	}
	for _, code := range AccountCodes(accountID) {
		if err := s.ledger.EnsureAccount(ctx, code); err != nil {
			return fmt.Errorf("ensure account %s: %w", code, err)
		}
	}
	return nil
}

// AccountCodes lists every ledger account belonging to the wallet.
func AccountCodes(accountID identity.AccountID) []string {
	id := accountID.String()
	codes := []string{
		ledger.WalletAccountCode(id, ledger.CurrencyUSD),
		ledger.WalletAccountCode(id, ledger.CurrencyPHP),
		ledger.WalletAccountCode(id, ledger.CurrencyUSDC),
	}
	for _, name := range SubWalletNames {
		codes = append(codes, ledger.SubWalletAccountCode(id, name))
	}
	return codes
}

// Balances returns the account's full balance picture.
func (s *Service) Balances(ctx context.Context, accountID identity.AccountID) (Balances, error) {
	if err := s.Open(ctx, accountID); err != nil {
		return Balances{}, err
	}

	id := accountID.String()
	out := Balances{SubWallets: make(map[string]int64, len(SubWalletNames)), AsOf: time.Now().UTC()}

	var err error
	if out.USD, err = s.ledger.Balance(ctx, ledger.WalletAccountCode(id, ledger.CurrencyUSD)); err != nil {
		return Balances{}, err
	}
	if out.PHP, err = s.ledger.Balance(ctx, ledger.WalletAccountCode(id, ledger.CurrencyPHP)); err != nil {
		return Balances{}, err
	}
	if out.USDC, err = s.ledger.Balance(ctx, ledger.WalletAccountCode(id, ledger.CurrencyUSDC)); err != nil {
		return Balances{}, err
	}
	for _, name := range SubWalletNames {
		balance, err := s.ledger.Balance(ctx, ledger.SubWalletAccountCode(id, name))
		if err != nil {
			return Balances{}, err
		}
		out.SubWallets[name] = balance
	}
	return out, nil
}

// MoveInput captures a transfer between the main USD balance and a sub-wallet.
type MoveInput struct {
	AccountID  identity.AccountID
	SubWallet  string
	Direction  string
	AmountUSD  int64
	ClientTxID string
}

// MoveResult reports the posting outcome and resulting balances.
type MoveResult struct {
	Reference   string
	Status      string
	MainBalance int64
	SubBalance  int64
}

// Move shifts USD between the main balance and a named sub-wallet.
func (s *Service) Move(ctx context.Context, input MoveInput) (MoveResult, error) {
	if !validSubWallet(input.SubWallet) {
		return MoveResult{}, fmt.Errorf("unknown sub-wallet %q", input.SubWallet)
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}
	if err := s.Open(ctx, input.AccountID); err != nil {
		return MoveResult{}, err
	}

	id := input.AccountID.String()
	main := ledger.WalletAccountCode(id, ledger.CurrencyUSD)
	sub := ledger.SubWalletAccountCode(id, input.SubWallet)

	from, to := main, sub
	if input.Direction == MoveFromSub {
		from, to = sub, main
	} else if input.Direction != MoveToSub {
		return MoveResult{}, fmt.Errorf("invalid direction %q", input.Direction)
	}

	res, err := s.ledger.Transfer(ctx, from, to, ledger.KindSubWalletMove, input.ClientTxID, ledger.NewReference("sub"), input.AmountUSD)
	if err != nil {
		return MoveResult{}, err
	}

	s.touch(ctx, id)

	out := MoveResult{Reference: res.Reference, Status: res.Status}
	if input.Direction == MoveToSub {
		out.MainBalance, out.SubBalance = res.FromBalance, res.ToBalance
	} else {
		out.MainBalance, out.SubBalance = res.ToBalance, res.FromBalance
	}
	return out, nil
}

// History lists the account's ledger entries, newest first.
func (s *Service) History(ctx context.Context, accountID identity.AccountID, limit int) ([]ledger.Entry, error) {
	if err := s.Open(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, AccountCodes(accountID), limit)
}

// Stamp records a mutation time on the wallet, for services posting through
// the ledger directly.
func (s *Service) Stamp(ctx context.Context, accountID identity.AccountID) {
	s.touch(ctx, accountID.String())
}

// touch is best effort; a failed stamp never fails the posting that caused it.
func (s *Service) touch(ctx context.Context, accountID string) {
	_ = s.repo.Touch(ctx, accountID, time.Now().UTC())
}

func validSubWallet(name string) bool {
	for _, n := range SubWalletNames {
		if n == name {
			return true
		}
	}
	return false
}
