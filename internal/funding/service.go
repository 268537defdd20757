package funding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/wallet"
)

// Service coordinates wallet top-ups from a linked bank account.
type Service struct {
	ledger  ledger.Ledger
	wallets *wallet.Service
	bank    BankLink
}

// NewService prepares a funding service ensuring the bank funding account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, bank BankLink) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if bank == nil {
		bank = SandboxBankLink{}
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.FundingBankAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: ledgerBackend, wallets: wallets, bank: bank}, nil
}

// FundInput captures the required data for a bank-funded top-up.
type FundInput struct {
	AccountID      identity.AccountID
	AmountUSD      int64
	ProcessorToken string
	ClientTxID     string
}

// FundResult represents the domain outcome of a funding operation.
type FundResult struct {
	Reference     string
	Status        string
	USDBalance    int64
	BankReference string
	CompletedAt   time.Time
}

// Fund authorizes the debit against the linked bank account and credits the
// user's USD wallet.
func (s *Service) Fund(ctx context.Context, input FundInput) (FundResult, error) {
	if input.AmountUSD <= 0 {
		return FundResult{}, fmt.Errorf("amount must be positive")
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	if err := s.wallets.Open(ctx, input.AccountID); err != nil {
		return FundResult{}, err
	}

	decision, err := s.bank.AuthorizeDebit(ctx, DebitAuthorization{
		ProcessorToken: input.ProcessorToken,
		AmountUSD:      input.AmountUSD,
	})
	if err != nil {
		return FundResult{}, err
	}

	walletCode := ledger.WalletAccountCode(input.AccountID.String(), ledger.CurrencyUSD)
	res, err := s.ledger.Deposit(ctx, walletCode, input.ClientTxID, ledger.NewReference("fund"), input.AmountUSD)
	if err != nil {
		return FundResult{
			Reference:     res.Reference,
			Status:        res.Status,
			USDBalance:    res.ToBalance,
			BankReference: decision.Reference,
			CompletedAt:   time.Now().UTC(),
		}, err
	}

	s.wallets.Stamp(ctx, input.AccountID)

	return FundResult{
		Reference:     res.Reference,
		Status:        res.Status,
		USDBalance:    res.ToBalance,
		BankReference: decision.Reference,
		CompletedAt:   time.Now().UTC(),
	}, nil
}
