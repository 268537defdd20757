package wallet

import "time"

// Wallet is the per-account metadata record. Balances live in the ledger;
// this row tracks provisioning and the last mutation time.
type Wallet struct {
	AccountID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Balances is the full picture of an account's funds in minor units
// (cents for USD/USDC, centavos for PHP).
type Balances struct {
	USD        int64
	PHP        int64
	USDC       int64
	SubWallets map[string]int64
	AsOf       time.Time
}

// Named sub-wallets every account carries. Sub-wallets hold USD.
var SubWalletNames = []string{"bills", "savings", "family"}
