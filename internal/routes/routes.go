package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pbx-remit/backend/internal/auth"
	"github.com/pbx-remit/backend/internal/config"
	"github.com/pbx-remit/backend/internal/funding"
	"github.com/pbx-remit/backend/internal/fx"
	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/middleware"
	"github.com/pbx-remit/backend/internal/notification"
	"github.com/pbx-remit/backend/internal/payments"
	"github.com/pbx-remit/backend/internal/payout"
	"github.com/pbx-remit/backend/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres when configured, in-memory for local demos.
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo, ledgerBackend)

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo)
	sessions := identity.NewSessionStore()
	authSvc := auth.NewService(d.Cfg, identityRepo, sessions)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	var provider fx.RateProvider
	if d.Cfg.FxProvider == config.FxProviderStatic {
		provider = fx.StaticProvider{Rate: d.Cfg.FxDevRate}
	} else {
		provider = fx.NewHTTPProvider(d.Cfg.FxRateURL, d.Cfg.FxAPIKey)
	}
	engine := fx.NewEngine(provider, d.Cfg.FxCacheTTL)

	var lockRepo fx.LockRepository
	if d.DB != nil {
		lockRepo = fx.NewPostgresLockRepository(d.DB)
	} else {
		lockRepo = fx.NewMemoryLockRepository()
	}
	lockSvc := fx.NewLockService(engine, lockRepo, d.Cfg.RateLockTTL)
	fxHandler := fx.NewHandler(engine, lockSvc)

	notifier := notification.NewLoggerNotifier(d.Logger)
	resolver := identity.TokenResolver{}

	ctx := context.Background()
	fundingSvc, err := funding.NewService(ctx, ledgerBackend, walletSvc, nil)
	if err != nil {
		return err
	}
	paymentSvc, err := payments.NewService(ctx, ledgerBackend, walletSvc, engine, lockSvc, resolver, notifier)
	if err != nil {
		return err
	}
	payoutSvc, err := payout.NewService(ctx, ledgerBackend, walletSvc, engine, notifier)
	if err != nil {
		return err
	}

	fundingHandler := funding.NewHandler(fundingSvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	payoutHandler := payout.NewHandler(payoutSvc)
	walletHandler := wallet.NewHandler(walletSvc)

	api := app.Group("/api/v1")
	api.Use(middleware.ResolveAccount(authSvc, resolver))

	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(api, identitySvc, walletSvc, d.Logger)
	loginLimiter := middleware.RateLimit(d.Cache, "login", 5, time.Minute)
	RegisterAuthRoutes(api, authHandler, loginLimiter)

	quoteLimiter := middleware.RateLimit(d.Cache, "quote", 60, time.Minute)
	RegisterFxRoutes(api, fxHandler, quoteLimiter)
	RegisterWalletRoutes(api, walletHandler, fundingHandler, paymentHandler)
	RegisterTransferRoutes(api, paymentHandler)
	RegisterPayoutRoutes(api, payoutHandler)

	return nil
}
