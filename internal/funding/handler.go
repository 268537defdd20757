package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/validation"
)

// Handler exposes the funding HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a funding HTTP handler.
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

// Fund credits the caller's USD wallet from their linked bank account. A replay
// of a client transaction id returns the original posting rather than an error.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Fund(c.UserContext(), FundInput{
		AccountID:      accountFromLocals(c),
		AmountUSD:      req.AmountUSD,
		ProcessorToken: req.ProcessorToken,
		ClientTxID:     req.ClientTxID,
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	status := http.StatusCreated
	if err != nil {
		status = http.StatusOK
	}
	return c.Status(status).JSON(FundResponse{
		Success:       true,
		TransactionID: res.Reference,
		Status:        res.Status,
		AmountUSD:     req.AmountUSD,
		Currency:      ledger.CurrencyUSD,
		USDBalance:    res.USDBalance,
		BankReference: res.BankReference,
	})
}
