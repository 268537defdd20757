package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
)

func TestBalancesProvisionsLazily(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()
	account := identity.AccountID("user@example.com")

	balances, err := svc.Balances(ctx, account)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if balances.USD != 0 || balances.PHP != 0 || balances.USDC != 0 {
		t.Fatalf("fresh wallet should be empty: %+v", balances)
	}
	for _, name := range SubWalletNames {
		if balances.SubWallets[name] != 0 {
			t.Fatalf("fresh sub-wallet %s not empty", name)
		}
	}

	// The wallet record exists after the first read.
	repo := svc.repo
	if _, err := repo.Get(ctx, account.String()); err != nil {
		t.Fatalf("wallet not provisioned on first read: %v", err)
	}
}

func TestMoveToAndFromSubWallet(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()
	account := identity.AccountID("user-1")

	if err := svc.Open(ctx, account); err != nil {
		t.Fatalf("open: %v", err)
	}
	ledger.SeedBalance(led, ledger.WalletAccountCode(account.String(), ledger.CurrencyUSD), 100_00)

	res, err := svc.Move(ctx, MoveInput{AccountID: account, SubWallet: "savings", Direction: MoveToSub, AmountUSD: 30_00, ClientTxID: "c1"})
	if err != nil {
		t.Fatalf("move to sub: %v", err)
	}
	if res.MainBalance != 70_00 || res.SubBalance != 30_00 {
		t.Fatalf("unexpected balances after move: %+v", res)
	}

	back, err := svc.Move(ctx, MoveInput{AccountID: account, SubWallet: "savings", Direction: MoveFromSub, AmountUSD: 10_00, ClientTxID: "c2"})
	if err != nil {
		t.Fatalf("move from sub: %v", err)
	}
	if back.MainBalance != 80_00 || back.SubBalance != 20_00 {
		t.Fatalf("unexpected balances after move back: %+v", back)
	}
}

func TestMoveInsufficientFunds(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()
	account := identity.AccountID("user-1")

	_, err := svc.Move(ctx, MoveInput{AccountID: account, SubWallet: "bills", Direction: MoveToSub, AmountUSD: 50_00, ClientTxID: "c1"})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestMoveUnknownSubWallet(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	_, err := svc.Move(context.Background(), MoveInput{AccountID: "u", SubWallet: "vacation", Direction: MoveToSub, AmountUSD: 10})
	if err == nil {
		t.Fatal("expected unknown sub-wallet rejection")
	}
}

func TestHistoryListsWalletEntries(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()
	account := identity.AccountID("user-1")

	if err := svc.Open(ctx, account); err != nil {
		t.Fatalf("open: %v", err)
	}
	code := ledger.WalletAccountCode(account.String(), ledger.CurrencyUSD)
	if _, err := led.Deposit(ctx, code, "c1", ledger.NewReference("fund"), 50_00); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	entries, err := svc.History(ctx, account, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Kind != ledger.KindFund || entries[0].Amount != 50_00 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}
