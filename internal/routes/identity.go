package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/wallet"
)

// RegisterIdentityRoutes wires identity endpoints and auto-provisions the
// multi-currency wallet on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Phone    string `json:"phone"`
			PIN      string `json:"pin"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if wallets != nil {
			if err := wallets.Open(c.UserContext(), identity.AccountID(user.ID)); err != nil {
				logger.Warn("wallet provisioning on register failed", slog.String("user_id", user.ID), slog.Any("error", err))
			}
		}
		logger.Info("identity.register completed",
			slog.String("user_id", user.ID),
			slog.String("phone", user.Phone),
			slog.Int("status", http.StatusCreated),
		)
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":   user.ID,
			"phone":     user.Phone,
			"tier":      user.Tier,
			"device_id": user.DeviceID,
		})
	})

	r.Post("/identity/authenticate", func(c *fiber.Ctx) error {
		var req struct {
			Phone    string `json:"phone"`
			PIN      string `json:"pin"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user_id":   user.ID,
			"phone":     user.Phone,
			"tier":      user.Tier,
			"device_id": user.DeviceID,
		})
	})
}
