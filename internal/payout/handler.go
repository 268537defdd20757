package payout

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/validation"
)

// Handler exposes payout and bill-payment HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a payout HTTP handler.
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

type sendRequest struct {
	Channel          string `json:"channel" validate:"required"`
	AmountPHP        int64  `json:"amount_php_centavos" validate:"required,gt=0"`
	RecipientName    string `json:"recipient_name"`
	RecipientAccount string `json:"recipient_account"`
	ClientTxID       string `json:"client_tx_id"`
}

// Send pays out PHP balance to an external delivery channel.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Send(c.UserContext(), SendInput{
		AccountID:        accountFromLocals(c),
		Channel:          req.Channel,
		AmountPHP:        req.AmountPHP,
		RecipientName:    req.RecipientName,
		RecipientAccount: req.RecipientAccount,
		ClientTxID:       req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownChannel):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return insufficientFundsResponse(c, err)
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return fiber.NewError(http.StatusConflict, "duplicate transaction")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	payload := fiber.Map{
		"success":        true,
		"transaction_id": res.Reference,
		"status":         res.Status,
		"php_balance":    res.PHPBalance,
		"sent_at":        res.SentAt,
	}
	if res.PickupCode != "" {
		payload["pickup_code"] = res.PickupCode
	}
	return c.Status(http.StatusCreated).JSON(payload)
}

// Settle advances a processing payout to completed.
func (h *Handler) Settle(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if err := h.service.Settle(c.UserContext(), reference); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "transaction_id": reference, "status": ledger.StatusCompleted})
}

type payBillRequest struct {
	Biller        string `json:"biller" validate:"required"`
	AccountNumber string `json:"account_number"`
	AmountPHP     int64  `json:"amount_php_centavos" validate:"required,gt=0"`
	FromSubWallet bool   `json:"from_sub_wallet"`
	ClientTxID    string `json:"client_tx_id"`
}

// PayBill settles a PHP bill from the wallet, optionally drawing on the bills envelope.
func (h *Handler) PayBill(c *fiber.Ctx) error {
	var req payBillRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.PayBill(c.UserContext(), PayBillInput{
		AccountID:     accountFromLocals(c),
		Biller:        req.Biller,
		AccountNumber: req.AccountNumber,
		AmountPHP:     req.AmountPHP,
		FromSubWallet: req.FromSubWallet,
		ClientTxID:    req.ClientTxID,
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
		"php_balance":    res.PHPBalance,
		"paid_at":        res.PaidAt,
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
