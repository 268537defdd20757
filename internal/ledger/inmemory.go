package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	account string
	amount  int64
}

type memoryTx struct {
	reference string
	kind      string
	status    string
	rate      *float64
	createdAt time.Time
	entries   []memoryEntry
}

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
	results  map[string]PostingResult
	byRef    map[string]*memoryTx
	txs      []*memoryTx
}

// NewInMemory creates a concurrency-safe in-memory ledger. It backs unit tests
// and the dev mode where no DATABASE_URL is configured. Accounts are created
// lazily with a zero balance on first touch.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[string]int64),
		results:  make(map[string]PostingResult),
		byRef:    make(map[string]*memoryTx),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[code], nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, walletCode, clientTxID, reference string, amount int64) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.results[idempotencyKey(KindFund, clientTxID)]; exists {
		return res, ErrDuplicateTransaction
	}

	l.balances[walletCode] += amount
	l.balances[FundingBankAccountCode] -= amount

	res := PostingResult{
		Reference: reference,
		Status:    StatusCompleted,
		ToBalance: l.balances[walletCode],
	}
	l.record(KindFund, clientTxID, res, nil, []memoryEntry{
		{account: FundingBankAccountCode, amount: -amount},
		{account: walletCode, amount: amount},
	})
	return res, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromCode, toCode, kind, clientTxID, reference string, amount int64) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.results[idempotencyKey(kind, clientTxID)]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance := l.balances[fromCode]
	if fromBalance < amount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: fromCode, Available: fromBalance}
	}

	l.balances[fromCode] = fromBalance - amount
	l.balances[toCode] += amount

	res := PostingResult{
		Reference:   reference,
		Status:      StatusCompleted,
		FromBalance: l.balances[fromCode],
		ToBalance:   l.balances[toCode],
	}
	l.record(kind, clientTxID, res, nil, []memoryEntry{
		{account: fromCode, amount: -amount},
		{account: toCode, amount: amount},
	})
	return res, nil
}

func (l *inMemoryLedger) Convert(_ context.Context, p ConversionPosting) (PostingResult, error) {
	if err := validateAmount(p.FromAmount); err != nil {
		return PostingResult{}, err
	}
	if err := validateAmount(p.ToAmount); err != nil {
		return PostingResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.results[idempotencyKey(KindConversion, p.ClientTxID)]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance := l.balances[p.FromWallet]
	if fromBalance < p.FromAmount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: p.FromWallet, Available: fromBalance}
	}

	l.balances[p.FromWallet] = fromBalance - p.FromAmount
	l.balances[p.FromLiquidity] += p.FromAmount
	l.balances[p.ToLiquidity] -= p.ToAmount
	l.balances[p.ToWallet] += p.ToAmount

	rate := p.Rate
	res := PostingResult{
		Reference:   p.Reference,
		Status:      StatusCompleted,
		FromBalance: l.balances[p.FromWallet],
		ToBalance:   l.balances[p.ToWallet],
	}
	l.record(KindConversion, p.ClientTxID, res, &rate, []memoryEntry{
		{account: p.FromWallet, amount: -p.FromAmount},
		{account: p.FromLiquidity, amount: p.FromAmount},
		{account: p.ToLiquidity, amount: -p.ToAmount},
		{account: p.ToWallet, amount: p.ToAmount},
	})
	return res, nil
}

func (l *inMemoryLedger) Payout(_ context.Context, walletCode, destinationCode, kind, clientTxID, reference string, amount int64, status string) (PostingResult, error) {
	if err := validateAmount(amount); err != nil {
		return PostingResult{}, err
	}
	if status != StatusCompleted && status != StatusProcessing {
		return PostingResult{}, fmt.Errorf("invalid posting status %q", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if res, exists := l.results[idempotencyKey(kind, clientTxID)]; exists {
		return res, ErrDuplicateTransaction
	}

	walletBalance := l.balances[walletCode]
	if walletBalance < amount {
		return PostingResult{}, &InsufficientFundsError{AccountCode: walletCode, Available: walletBalance}
	}

	l.balances[walletCode] = walletBalance - amount
	l.balances[destinationCode] += amount

	res := PostingResult{
		Reference:   reference,
		Status:      status,
		FromBalance: l.balances[walletCode],
	}
	l.record(kind, clientTxID, res, nil, []memoryEntry{
		{account: walletCode, amount: -amount},
		{account: destinationCode, amount: amount},
	})
	return res, nil
}

func (l *inMemoryLedger) MarkCompleted(_ context.Context, reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.byRef[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	if tx.status == StatusCompleted {
		return nil
	}
	if tx.status != StatusProcessing {
		return fmt.Errorf("transaction %s is %s, cannot complete", reference, tx.status)
	}
	tx.status = StatusCompleted
	return nil
}

func (l *inMemoryLedger) History(_ context.Context, codes []string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	wanted := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		wanted[code] = struct{}{}
	}

	var out []Entry
	for i := len(l.txs) - 1; i >= 0; i-- {
		tx := l.txs[i]
		for _, e := range tx.entries {
			if _, ok := wanted[e.account]; !ok {
				continue
			}
			out = append(out, Entry{
				Reference:   tx.reference,
				Kind:        tx.kind,
				Status:      tx.status,
				AccountCode: e.account,
				Amount:      e.amount,
				Rate:        tx.rate,
				CreatedAt:   tx.createdAt,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// record registers the posting for idempotent replay and history. Callers hold the lock.
func (l *inMemoryLedger) record(kind, clientTxID string, res PostingResult, rate *float64, entries []memoryEntry) {
	tx := &memoryTx{
		reference: res.Reference,
		kind:      kind,
		status:    res.Status,
		rate:      rate,
		createdAt: time.Now().UTC(),
		entries:   entries,
	}
	l.results[idempotencyKey(kind, clientTxID)] = res
	l.byRef[res.Reference] = tx
	l.txs = append(l.txs, tx)
}
