package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/wallet"
)

func newTestService(t *testing.T) (*Service, ledger.Ledger) {
	t.Helper()
	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	svc, err := NewService(context.Background(), led, wallets, SandboxBankLink{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, led
}

func TestFundCreditsUSDWallet(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	account := identity.AccountID("user@example.com")

	res, err := svc.Fund(ctx, FundInput{AccountID: account, AmountUSD: 50_00, ClientTxID: "c1"})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.USDBalance != 50_00 {
		t.Fatalf("expected balance 5000, got %d", res.USDBalance)
	}
	if res.BankReference == "" {
		t.Fatal("expected a bank reference")
	}

	code := ledger.WalletAccountCode(account.String(), ledger.CurrencyUSD)
	balance, err := led.Balance(ctx, code)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50_00 {
		t.Fatalf("ledger balance mismatch: %d", balance)
	}

	entries, err := led.History(ctx, []string{code}, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != ledger.KindFund {
		t.Fatalf("expected a single fund entry, got %+v", entries)
	}
}

func TestFundReplayReturnsOriginalPosting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := identity.AccountID("user-1")

	first, err := svc.Fund(ctx, FundInput{AccountID: account, AmountUSD: 25_00, ClientTxID: "dup"})
	if err != nil {
		t.Fatalf("first fund: %v", err)
	}

	second, err := svc.Fund(ctx, FundInput{AccountID: account, AmountUSD: 25_00, ClientTxID: "dup"})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if second.Reference != first.Reference {
		t.Fatalf("replay should return the original reference: %s vs %s", second.Reference, first.Reference)
	}
	if second.USDBalance != first.USDBalance {
		t.Fatalf("replay must not move money: %d vs %d", second.USDBalance, first.USDBalance)
	}
}

func TestFundRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Fund(context.Background(), FundInput{AccountID: "u", AmountUSD: 0}); err == nil {
		t.Fatal("expected rejection of zero amount")
	}
	if _, err := svc.Fund(context.Background(), FundInput{AccountID: "u", AmountUSD: -5_00}); err == nil {
		t.Fatal("expected rejection of negative amount")
	}
}

type decliningBank struct{}

func (decliningBank) AuthorizeDebit(context.Context, DebitAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{}, errors.New("bank declined")
}

func TestFundSurfacesBankDecline(t *testing.T) {
	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	svc, err := NewService(context.Background(), led, wallets, decliningBank{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	account := identity.AccountID("user-1")
	if _, err := svc.Fund(context.Background(), FundInput{AccountID: account, AmountUSD: 10_00}); err == nil {
		t.Fatal("expected bank decline to surface")
	}

	balance, err := led.Balance(context.Background(), ledger.WalletAccountCode(account.String(), ledger.CurrencyUSD))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("declined funding must not credit the wallet: %d", balance)
	}
}
