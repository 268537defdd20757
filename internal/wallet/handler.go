package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/validation"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
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

// Balance returns the account's balances across currencies and sub-wallets.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext(), accountFromLocals(c))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"usd_balance":  balances.USD,
		"php_balance":  balances.PHP,
		"usdc_balance": balances.USDC,
		"sub_wallets":  balances.SubWallets,
		"as_of":        balances.AsOf,
	})
}

// History lists recent ledger entries for the account.
func (h *Handler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	entries, err := h.service.History(c.UserContext(), accountFromLocals(c), limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		item := fiber.Map{
			"transaction_id": e.Reference,
			"type":           e.Kind,
			"status":         e.Status,
			"account":        e.AccountCode,
			"amount":         e.Amount,
			"created_at":     e.CreatedAt,
		}
		if e.Rate != nil {
			item["rate"] = *e.Rate
		}
		items = append(items, item)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": items})
}

type moveRequest struct {
	SubWallet  string `json:"sub_wallet" validate:"required"`
	Direction  string `json:"direction" validate:"required,oneof=to_sub from_sub"`
	AmountUSD  int64  `json:"amount_usd_cents" validate:"required,gt=0"`
	ClientTxID string `json:"client_tx_id"`
}

// Move shifts USD between the main balance and a sub-wallet.
func (h *Handler) Move(c *fiber.Ctx) error {
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Move(c.UserContext(), MoveInput{
		AccountID:  accountFromLocals(c),
		SubWallet:  req.SubWallet,
		Direction:  req.Direction,
		AmountUSD:  req.AmountUSD,
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
		"main_balance":   res.MainBalance,
		"sub_balance":    res.SubBalance,
	})
}

// insufficientFundsResponse discloses the available balance alongside the rejection.
func insufficientFundsResponse(c *fiber.Ctx, err error) error {
	payload := fiber.Map{"success": false, "error": "insufficient balance"}
	var insufficient *ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		payload["available"] = insufficient.Available
	}
	return c.Status(http.StatusBadRequest).JSON(payload)
}
