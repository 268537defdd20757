package fx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/validation"
)

// Handler exposes quote and rate-lock HTTP endpoints.
type Handler struct {
	engine *Engine
	locks  *LockService
}

// NewHandler builds an fx HTTP handler.
func NewHandler(engine *Engine, locks *LockService) *Handler {
	return &Handler{engine: engine, locks: locks}
}

// Quote returns the USD->PHP rate offered for amount_usd.
func (h *Handler) Quote(c *fiber.Ctx) error {
	raw := c.Query("amount_usd", "100")
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount_usd must be a number")
	}

	quote, err := h.engine.Quote(c.UserContext(), amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRateUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "exchange rate unavailable")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"amount_usd":         amount,
		"mid_market":         quote.MidMarket,
		"pbx_rate":           quote.PBXRate,
		"spread_php_per_usd": quote.SpreadPHPPerUSD,
		"spread_percent":     quote.SpreadPercent,
		"timestamp":          quote.Timestamp.Unix(),
	})
}

type lockRequest struct {
	AmountUSD int64 `json:"amount_usd_cents" validate:"required,gt=0"`
}

func accountFromLocals(c *fiber.Ctx) string {
	id, _ := c.Locals("account_id").(string)
	if id == "" {
		return identity.AnonymousAccount.String()
	}
	return id
}

// Lock holds the currently offered rate for the caller for a limited window.
func (h *Handler) Lock(c *fiber.Ctx) error {
	var req lockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	lock, err := h.locks.Lock(c.UserContext(), accountFromLocals(c), req.AmountUSD)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRateUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "exchange rate unavailable")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"lock_id":          lock.ID,
		"rate":             lock.Rate,
		"amount_usd_cents": lock.AmountUSD,
		"status":           lock.Status,
		"expires_at":       lock.ExpiresAt,
	})
}

// Redeem consumes an active lock and returns the held rate.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	lock, err := h.locks.Redeem(c.UserContext(), c.Params("lockId"), accountFromLocals(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrLockNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrLockExpired):
			return fiber.NewError(http.StatusGone, err.Error())
		case errors.Is(err, ErrLockUsed):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"lock_id":          lock.ID,
		"rate":             lock.Rate,
		"amount_usd_cents": lock.AmountUSD,
		"status":           lock.Status,
	})
}
