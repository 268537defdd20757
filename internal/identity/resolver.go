package identity

import "strings"

// AccountID is the stable key wallet and ledger state hangs off.
type AccountID string

func (a AccountID) String() string { return string(a) }

// AnonymousAccount is the fixed identity used when no credential is presented.
// Demo behavior: anonymous requests share one sandbox wallet.
const AnonymousAccount AccountID = "demo-user"

const maxOpaqueKeyLen = 36

// Resolver maps an opaque credential to a stable account identifier, keeping
// ledger logic decoupled from token-parsing heuristics.
type Resolver interface {
	Resolve(token string) AccountID
}

// TokenResolver derives the account key directly from the token text: email
// tokens are normalized (trimmed, lowercased), anything else is truncated to a
// fixed-length prefix, and an absent token maps to the anonymous account.
type TokenResolver struct{}

// Resolve implements Resolver.
func (TokenResolver) Resolve(token string) AccountID {
	token = strings.TrimSpace(token)
	if token == "" {
		return AnonymousAccount
	}
	if strings.Contains(token, "@") {
		return AccountID(strings.ToLower(token))
	}
	if len(token) > maxOpaqueKeyLen {
		token = token[:maxOpaqueKeyLen]
	}
	return AccountID(token)
}
