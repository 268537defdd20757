package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimitApp(t *testing.T, max int, window time.Duration) (*fiber.App, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("account_id", "acct-1")
		return c.Next()
	})
	app.Use(RateLimit(cache, "test", max, window))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, mr, cleanup
}

func TestRateLimitEnforcesCap(t *testing.T) {
	app, _, cleanup := setupRateLimitApp(t, 2, time.Minute)
	defer cleanup()

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected %d got %d", i+1, fiber.StatusOK, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d past the cap, got %d", fiber.StatusTooManyRequests, resp.StatusCode)
	}
}

func TestRateLimitCounterAlwaysExpires(t *testing.T) {
	app, mr, cleanup := setupRateLimitApp(t, 5, time.Minute)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil)); err != nil {
			t.Fatalf("app.Test: %v", err)
		}
	}

	// The window TTL is reserved before the first increment, so the counter
	// can never outlive its window.
	key := "rl:test:acct-1"
	if !mr.Exists(key) {
		t.Fatalf("expected counter %s to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter %s should carry the window TTL, got %v", key, ttl)
	}

	// Once the window elapses the caller starts a fresh count.
	mr.FastForward(time.Minute + time.Second)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected fresh window to admit the request, got %d", resp.StatusCode)
	}
}
