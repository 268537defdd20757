package ledger

// SeedBalance sets an account balance directly on the in-memory ledger. Test
// helper only; no-op for other implementations.
func SeedBalance(l Ledger, code string, amount int64) {
	impl, ok := l.(*inMemoryLedger)
	if !ok {
		return
	}
	impl.mu.Lock()
	defer impl.mu.Unlock()
	impl.balances[code] = amount
}
