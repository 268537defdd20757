package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/payments"
)

// RegisterTransferRoutes wires wallet-to-wallet transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transfers/internal", h.Transfer)
}
