package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletbridge/authbridge/internal/auth"
	"github.com/walletbridge/authbridge/internal/config"
	"github.com/walletbridge/authbridge/internal/identity"
	"github.com/walletbridge/authbridge/internal/metrics"
	"github.com/walletbridge/authbridge/internal/middleware"
	"github.com/walletbridge/authbridge/internal/notification"
	"github.com/walletbridge/authbridge/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	// Repo overrides the identity store; tests use it to inject a memory repository.
	Repo identity.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if !d.Cfg.IsDev() && d.DB == nil && d.Repo == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	// The issuer key is converted once; a bad key stops startup instead of
	// failing every request.
	verifier, err := auth.NewVerifierFromPEM(d.Cfg.IssuerPublicKey, auth.VerifierConfig{
		Issuer:   d.Cfg.IssuerName,
		Audience: d.Cfg.IssuerAudience,
		Leeway:   d.Cfg.TokenLeeway,
	})
	if err != nil {
		return err
	}
	issuer := auth.NewIssuer(d.Cfg.SessionSecret, d.Cfg.SessionAudience, d.Cfg.SessionTTL)

	repo := d.Repo
	switch {
	case repo != nil:
	case d.DB != nil:
		repo = identity.NewPostgresRepository(d.DB)
	default:
		d.Logger.Warn("no database configured, using in-memory identity store")
		repo = identity.NewMemoryRepository()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	svc := auth.NewService(verifier, issuer, repo, notifier, d.Logger).WithSource(config.Hostname())
	exchangeHandler := auth.NewHandler(svc, d.Logger)
	walletHandler := wallet.NewHandler(repo, d.Logger)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(metrics.Middleware())

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var guards []fiber.Handler
	if d.Cache != nil {
		guards = append(guards,
			middleware.ExchangeRateLimit(d.Cache, d.Cfg.ExchangeRateLimit, d.Logger),
			middleware.InflightGuard(d.Cache, d.Cfg.InflightTTL, d.Logger),
		)
	}
	RegisterExchangeRoutes(api, exchangeHandler, guards...)

	protected := api.Group("/me", middleware.SessionAuth(issuer))
	RegisterWalletRoutes(protected, walletHandler)

	return nil
}
