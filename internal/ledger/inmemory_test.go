package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestInMemoryLedger_DepositCreditsWallet(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	code := WalletAccountCode("user-1", CurrencyUSD)

	res, err := l.Deposit(ctx, code, "client-1", NewReference("fund"), 5_000)
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if res.ToBalance != 5_000 {
		t.Fatalf("expected wallet balance 5000, got %d", res.ToBalance)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("unexpected status: %s", res.Status)
	}

	history, err := l.History(ctx, []string{code}, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].Kind != KindFund || history[0].Amount != 5_000 {
		t.Fatalf("unexpected entry: %+v", history[0])
	}
}

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	from := WalletAccountCode("a", CurrencyUSD)
	to := WalletAccountCode("b", CurrencyUSD)
	SeedBalance(l, from, 10_000)

	res, err := l.Transfer(ctx, from, to, KindInternalTransfer, "client-1", NewReference("xfer"), 1_500)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.FromBalance != 8_500 {
		t.Fatalf("expected from balance 8500, got %d", res.FromBalance)
	}
	if res.ToBalance != 1_500 {
		t.Fatalf("expected to balance 1500, got %d", res.ToBalance)
	}

	ledgerImpl := l.(*inMemoryLedger)
	total := ledgerImpl.balances[from] + ledgerImpl.balances[to]
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_DebitRejectionLeavesWalletUnchanged(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	from := WalletAccountCode("a", CurrencyUSD)
	to := WalletAccountCode("b", CurrencyUSD)
	SeedBalance(l, from, 1_000)

	_, err := l.Transfer(ctx, from, to, KindInternalTransfer, "client-1", NewReference("xfer"), 2_500)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected typed insufficient funds error, got %T", err)
	}
	if insufficient.Available != 1_000 {
		t.Fatalf("expected available 1000, got %d", insufficient.Available)
	}

	balance, _ := l.Balance(ctx, from)
	if balance != 1_000 {
		t.Fatalf("wallet changed after rejection: %d", balance)
	}
	if toBalance, _ := l.Balance(ctx, to); toBalance != 0 {
		t.Fatalf("destination changed after rejection: %d", toBalance)
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	from := WalletAccountCode("a", CurrencyUSD)
	to := WalletAccountCode("b", CurrencyUSD)
	SeedBalance(l, from, 5_000)

	first, err := l.Transfer(ctx, from, to, KindInternalTransfer, "dup", NewReference("xfer"), 500)
	if err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	replay, err := l.Transfer(ctx, from, to, KindInternalTransfer, "dup", NewReference("xfer"), 500)
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if replay.Reference != first.Reference {
		t.Fatalf("replay returned a different reference: %s vs %s", replay.Reference, first.Reference)
	}
}

func TestInMemoryLedger_ConvertExampleScenario(t *testing.T) {
	// wallet {usd:100, php:0}; convert 40 USD at rate 56.0 -> {usd:60, php:2240}
	l := NewInMemory()
	ctx := context.Background()
	usd := WalletAccountCode("u", CurrencyUSD)
	php := WalletAccountCode("u", CurrencyPHP)
	SeedBalance(l, usd, 100_00)

	res, err := l.Convert(ctx, ConversionPosting{
		FromWallet:    usd,
		ToWallet:      php,
		FromLiquidity: LiquidityAccountCode(CurrencyUSD),
		ToLiquidity:   LiquidityAccountCode(CurrencyPHP),
		ClientTxID:    "client-1",
		Reference:     NewReference("fx"),
		FromAmount:    40_00,
		ToAmount:      2240_00,
		Rate:          56.0,
	})
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if res.FromBalance != 60_00 {
		t.Fatalf("expected usd balance 6000, got %d", res.FromBalance)
	}
	if res.ToBalance != 2240_00 {
		t.Fatalf("expected php balance 224000, got %d", res.ToBalance)
	}

	history, err := l.History(ctx, []string{usd, php}, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 wallet entries, got %d", len(history))
	}
	for _, e := range history {
		if e.Kind != KindConversion {
			t.Fatalf("unexpected kind %s", e.Kind)
		}
		if e.Rate == nil || *e.Rate != 56.0 {
			t.Fatalf("expected rate 56.0 on entry, got %v", e.Rate)
		}
	}

	// Each currency's entries stay balanced against its liquidity account.
	usdLiquidity, _ := l.Balance(ctx, LiquidityAccountCode(CurrencyUSD))
	if usdLiquidity != 40_00 {
		t.Fatalf("usd liquidity expected 4000, got %d", usdLiquidity)
	}
	phpLiquidity, _ := l.Balance(ctx, LiquidityAccountCode(CurrencyPHP))
	if phpLiquidity != -2240_00 {
		t.Fatalf("php liquidity expected -224000, got %d", phpLiquidity)
	}
}

func TestInMemoryLedger_PayoutStatuses(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	php := WalletAccountCode("u", CurrencyPHP)
	SeedBalance(l, php, 10_000)

	instant, err := l.Payout(ctx, php, PayoutChannelAccountCode("gcash"), KindPayout, "c1", NewReference("pay"), 2_000, StatusCompleted)
	if err != nil {
		t.Fatalf("instant payout failed: %v", err)
	}
	if instant.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", instant.Status)
	}

	pending, err := l.Payout(ctx, php, PayoutChannelAccountCode("bank"), KindPayout, "c2", NewReference("pay"), 3_000, StatusProcessing)
	if err != nil {
		t.Fatalf("bank payout failed: %v", err)
	}
	if pending.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", pending.Status)
	}
	if pending.FromBalance != 5_000 {
		t.Fatalf("expected wallet balance 5000, got %d", pending.FromBalance)
	}

	if err := l.MarkCompleted(ctx, pending.Reference); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	// settling twice is a no-op
	if err := l.MarkCompleted(ctx, pending.Reference); err != nil {
		t.Fatalf("second settle should be a no-op: %v", err)
	}

	history, _ := l.History(ctx, []string{php}, 10)
	for _, e := range history {
		if e.Reference == pending.Reference && e.Status != StatusCompleted {
			t.Fatalf("settled entry still %s", e.Status)
		}
	}

	if err := l.MarkCompleted(ctx, "missing_ref"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryLedger_RejectsNonPositiveAmounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	code := WalletAccountCode("u", CurrencyUSD)

	if _, err := l.Deposit(ctx, code, "c1", NewReference("fund"), 0); err == nil {
		t.Fatal("expected zero deposit to be rejected")
	}
	if _, err := l.Transfer(ctx, code, code, KindInternalTransfer, "c2", NewReference("xfer"), -5); err == nil {
		t.Fatal("expected negative transfer to be rejected")
	}
}

func TestInMemoryLedger_ConcurrentTransfersStayBalanced(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	from := WalletAccountCode("a", CurrencyUSD)
	to := WalletAccountCode("b", CurrencyUSD)
	SeedBalance(l, from, 100_000)
	ledgerImpl := l.(*inMemoryLedger)

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txID := fmt.Sprintf("tx-%d", i)
			if _, err := l.Transfer(ctx, from, to, KindInternalTransfer, txID, NewReference("xfer"), amount); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := ledgerImpl.balances[from] + ledgerImpl.balances[to]
	if total != 100_000 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", total)
	}
}

func TestNewReferenceFormat(t *testing.T) {
	ref := NewReference("fund")
	parts := strings.Split(ref, "_")
	if len(parts) != 3 {
		t.Fatalf("expected prefix_millis_suffix, got %s", ref)
	}
	if parts[0] != "fund" {
		t.Fatalf("unexpected prefix %s", parts[0])
	}
	if len(parts[2]) != 6 {
		t.Fatalf("expected 6-char suffix, got %s", parts[2])
	}
}
