package funding

import (
	"context"

	"github.com/google/uuid"
)

// BankLink represents a connector to an external bank-account aggregator
// (Plaid-style). The real vendor API is out of scope; the connector boundary
// carries only what the ledger posting needs.
type BankLink interface {
	AuthorizeDebit(ctx context.Context, input DebitAuthorization) (AuthorizationDecision, error)
}

// DebitAuthorization encapsulates details for debiting a linked bank account.
type DebitAuthorization struct {
	ProcessorToken string
	AmountUSD      int64
}

// AuthorizationDecision captures the simulated response from the bank link.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// SandboxBankLink simulates a successful bank-link integration.
type SandboxBankLink struct{}

// AuthorizeDebit approves the debit with a synthetic reference.
func (SandboxBankLink) AuthorizeDebit(_ context.Context, _ DebitAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
