package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pbx-remit/backend/internal/config"
	"github.com/pbx-remit/backend/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:         "PBX",
		Env:             "dev",
		Port:            "8080",
		ShutdownPeriod:  time.Second,
		IdempotencyTTL:  time.Minute,
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		FxProvider:      config.FxProviderStatic,
		FxCacheTTL:      time.Minute,
		FxDevRate:       56.0,
		RateLockTTL:     15 * time.Minute,
	}

	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestQuoteEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/fx/quote?amount_usd=500", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["mid_market"].(float64) != 56.0 {
		t.Fatalf("unexpected mid-market: %v", body["mid_market"])
	}
	// $500 sits in the base tier: 0.75% off mid.
	wantRate := 56.0 - 56.0*0.75/100
	if got := body["pbx_rate"].(float64); got != wantRate {
		t.Fatalf("expected rate %v, got %v", wantRate, got)
	}
}

func TestQuoteRejectsBadAmount(t *testing.T) {
	app := newTestApp(t)

	if status, _ := doJSON(t, app, fiber.MethodGet, "/api/v1/fx/quote?amount_usd=abc", "", nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric amount, got %d", status)
	}
	if status, _ := doJSON(t, app, fiber.MethodGet, "/api/v1/fx/quote?amount_usd=-5", "", nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", status)
	}
}

func TestFundBalanceConvertPayoutFlow(t *testing.T) {
	app := newTestApp(t)
	token := "sender@example.com"

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", token, map[string]any{
		"amount_usd_cents": 500_00,
		"client_tx_id":     "fund-1",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("fund: expected 201, got %d: %v", status, body)
	}
	if body["usd_balance"].(float64) != 500_00 {
		t.Fatalf("fund: unexpected balance %v", body["usd_balance"])
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/wallet", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("balance: expected 200, got %d", status)
	}
	if body["usd_balance"].(float64) != 500_00 {
		t.Fatalf("balance: expected 50000, got %v", body["usd_balance"])
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/convert", token, map[string]any{
		"from_currency":     "USD",
		"to_currency":       "PHP",
		"from_amount_cents": 200_00,
		"client_tx_id":      "conv-1",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("convert: expected 201, got %d: %v", status, body)
	}
	phpCents := int64(body["to_amount_cents"].(float64))
	if phpCents <= 0 {
		t.Fatalf("convert: expected PHP credit, got %d", phpCents)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/payouts", token, map[string]any{
		"channel":             "gcash",
		"amount_php_centavos": phpCents,
		"client_tx_id":        "out-1",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("payout: expected 201, got %d: %v", status, body)
	}
	if body["status"].(string) != "completed" {
		t.Fatalf("payout: gcash should complete instantly, got %v", body["status"])
	}
	if body["php_balance"].(float64) != 0 {
		t.Fatalf("payout: expected drained PHP balance, got %v", body["php_balance"])
	}
}

func TestBankPayoutSettlement(t *testing.T) {
	app := newTestApp(t)
	token := "sender@example.com"

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", token, map[string]any{"amount_usd_cents": 100_00})
	_, conv := doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/convert", token, map[string]any{
		"from_currency":     "USD",
		"to_currency":       "PHP",
		"from_amount_cents": 100_00,
	})
	phpCents := int64(conv["to_amount_cents"].(float64))

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payouts", token, map[string]any{
		"channel":             "bank",
		"amount_php_centavos": phpCents,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("payout: expected 201, got %d: %v", status, body)
	}
	if body["status"].(string) != "processing" {
		t.Fatalf("bank payout should start processing, got %v", body["status"])
	}
	reference := body["transaction_id"].(string)

	status, body = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/payouts/%s/settle", reference), token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("settle: expected 200, got %d: %v", status, body)
	}
	if body["status"].(string) != "completed" {
		t.Fatalf("settle: expected completed, got %v", body["status"])
	}
}

func TestInternalTransferBetweenTokens(t *testing.T) {
	app := newTestApp(t)
	sender := "alice@example.com"

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", sender, map[string]any{"amount_usd_cents": 100_00})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transfers/internal", sender, map[string]any{
		"recipient":    "bob@example.com",
		"currency":     "USD",
		"amount_cents": 40_00,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("transfer: expected 201, got %d: %v", status, body)
	}
	if body["sender_balance"].(float64) != 60_00 {
		t.Fatalf("transfer: expected sender balance 6000, got %v", body["sender_balance"])
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/wallet", "bob@example.com", nil)
	if status != fiber.StatusOK {
		t.Fatalf("recipient balance: expected 200, got %d", status)
	}
	if body["usd_balance"].(float64) != 40_00 {
		t.Fatalf("recipient should hold 4000, got %v", body["usd_balance"])
	}
}

func TestInsufficientFundsDisclosesAvailable(t *testing.T) {
	app := newTestApp(t)
	token := "poor@example.com"

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", token, map[string]any{"amount_usd_cents": 10_00})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transfers/internal", token, map[string]any{
		"recipient":    "other@example.com",
		"currency":     "USD",
		"amount_cents": 99_00,
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %v", status, body)
	}
	if body["available"].(float64) != 10_00 {
		t.Fatalf("expected available 1000, got %v", body["available"])
	}
}

func TestRateLockLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := "locker@example.com"

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/fx/locks", token, map[string]any{"amount_usd_cents": 500_00})
	if status != fiber.StatusCreated {
		t.Fatalf("lock: expected 201, got %d: %v", status, body)
	}
	lockID := body["lock_id"].(string)
	lockedRate := body["rate"].(float64)

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", token, map[string]any{"amount_usd_cents": 500_00})

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/convert", token, map[string]any{
		"from_currency":     "USD",
		"to_currency":       "PHP",
		"from_amount_cents": 500_00,
		"lock_id":           lockID,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("convert with lock: expected 201, got %d: %v", status, body)
	}
	if body["rate"].(float64) != lockedRate {
		t.Fatalf("expected locked rate %v, got %v", lockedRate, body["rate"])
	}

	// A second redemption of the same lock is rejected.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/fx/locks/"+lockID+"/redeem", token, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for used lock, got %d", status)
	}
}

func TestAnonymousRequestsShareDemoWallet(t *testing.T) {
	app := newTestApp(t)

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", "", map[string]any{"amount_usd_cents": 25_00})

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/wallet", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["usd_balance"].(float64) != 25_00 {
		t.Fatalf("anonymous wallet should hold the funded amount, got %v", body["usd_balance"])
	}
}

func TestHistoryListsPostings(t *testing.T) {
	app := newTestApp(t)
	token := "history@example.com"

	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/fund", token, map[string]any{"amount_usd_cents": 100_00})
	doJSON(t, app, fiber.MethodPost, "/api/v1/wallet/subwallets/move", token, map[string]any{
		"sub_wallet":       "savings",
		"direction":        "to_sub",
		"amount_usd_cents": 30_00,
	})

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/wallet/history", token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("history: expected 200, got %d", status)
	}
	txs, ok := body["transactions"].([]any)
	if !ok || len(txs) < 2 {
		t.Fatalf("expected at least 2 history entries, got %v", body["transactions"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/healthz", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}
