package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/payout"
)

// RegisterPayoutRoutes wires payout and bill-payment endpoints.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler) {
	r.Post("/payouts", h.Send)
	r.Post("/payouts/:reference/settle", h.Settle)
	r.Post("/bills/pay", h.PayBill)
}
