package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/auth"
	"github.com/pbx-remit/backend/internal/identity"
)

// ResolveAccount maps the Authorization header to an account id in
// c.Locals("account_id"). A valid signed access token binds the request to the
// registered user; any other bearer value falls back to the demo resolver
// heuristic, and an absent header resolves to the shared anonymous account.
// Requests are never rejected here: identity gates nothing in the sandbox, it
// only selects whose wallet moves.
func ResolveAccount(authService *auth.Service, resolver identity.Resolver) fiber.Handler {
	if resolver == nil {
		resolver = identity.TokenResolver{}
	}
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))

		if token != "" && authService != nil {
			if claims, err := authService.ParseAccess(token); err == nil {
				if sub, _ := claims["sub"].(string); sub != "" {
					c.Locals("account_id", sub)
					return c.Next()
				}
			}
		}

		c.Locals("account_id", resolver.Resolve(token).String())
		return c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
