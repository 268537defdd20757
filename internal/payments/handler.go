package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/fx"
	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/validation"
)

// Handler exposes transfer and conversion HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a payments HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func accountFromLocals(c *fiber.Ctx) identity.AccountID {
	id, _ := c.Locals("account_id").(string)
	if id == "" {
		return identity.AnonymousAccount
	}
	return identity.AccountID(id)
}

type transferRequest struct {
	Recipient  string `json:"recipient" validate:"required"`
	Currency   string `json:"currency" validate:"required,oneof=USD PHP USDC"`
	Amount     int64  `json:"amount_cents" validate:"required,gt=0"`
	Note       string `json:"note"`
	ClientTxID string `json:"client_tx_id"`
}

// Transfer moves funds to another wallet in the same currency.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		Sender:     accountFromLocals(c),
		Recipient:  req.Recipient,
		Currency:   req.Currency,
		Amount:     req.Amount,
		Note:       req.Note,
		ClientTxID: req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return insufficientFundsResponse(c, err)
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return fiber.NewError(http.StatusConflict, "duplicate transaction")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"transaction_id": res.Reference,
		"status":         res.Status,
		"recipient":      res.Recipient.String(),
		"sender_balance": res.SenderBalance,
	})
}

type convertRequest struct {
	FromCurrency string `json:"from_currency" validate:"required,oneof=USD PHP USDC"`
	ToCurrency   string `json:"to_currency" validate:"required,oneof=USD PHP USDC"`
	FromAmount   int64  `json:"from_amount_cents" validate:"required,gt=0"`
	LockID       string `json:"lock_id"`
	ClientTxID   string `json:"client_tx_id"`
}

// Convert exchanges between two of the caller's currency balances.
func (h *Handler) Convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Convert(c.UserContext(), ConvertInput{
		AccountID:    accountFromLocals(c),
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		FromAmount:   req.FromAmount,
		LockID:       req.LockID,
		ClientTxID:   req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return insufficientFundsResponse(c, err)
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return fiber.NewError(http.StatusConflict, "duplicate transaction")
		case errors.Is(err, fx.ErrRateUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "exchange rate unavailable")
		case errors.Is(err, fx.ErrLockNotFound), errors.Is(err, fx.ErrLockExpired), errors.Is(err, fx.ErrLockUsed):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":           true,
		"transaction_id":    res.Reference,
		"status":            res.Status,
		"from_amount_cents": res.FromAmount,
		"to_amount_cents":   res.ToAmount,
		"rate":              res.Rate,
		"from_balance":      res.FromBalance,
		"to_balance":        res.ToBalance,
		"converted_at":      res.ConvertedAt,
	})
}

func insufficientFundsResponse(c *fiber.Ctx, err error) error {
	payload := fiber.Map{"success": false, "error": "insufficient balance"}
	var insufficient *ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		payload["available"] = insufficient.Available
	}
	return c.Status(http.StatusBadRequest).JSON(payload)
}
