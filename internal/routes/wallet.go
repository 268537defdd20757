package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/funding"
	"github.com/pbx-remit/backend/internal/payments"
	"github.com/pbx-remit/backend/internal/wallet"
)

// RegisterWalletRoutes wires wallet balance, history, funding, conversion and
// sub-wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, fundingHandler *funding.Handler, paymentHandler *payments.Handler) {
	group := r.Group("/wallet")
	group.Get("", h.Balance)
	group.Get("/history", h.History)
	group.Post("/fund", fundingHandler.Fund)
	group.Post("/convert", paymentHandler.Convert)
	group.Post("/subwallets/move", h.Move)
}
