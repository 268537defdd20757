package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/fx"
)

// RegisterFxRoutes wires quote and rate-lock endpoints.
func RegisterFxRoutes(r fiber.Router, h *fx.Handler, quoteLimiter fiber.Handler) {
	group := r.Group("/fx")
	if quoteLimiter != nil {
		group.Get("/quote", quoteLimiter, h.Quote)
	} else {
		group.Get("/quote", h.Quote)
	}
	group.Post("/locks", h.Lock)
	group.Post("/locks/:lockId/redeem", h.Redeem)
}
