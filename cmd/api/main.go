package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/lnurlw/backend/internal/config"
	"github.com/lnurlw/backend/internal/db"
	"github.com/lnurlw/backend/internal/events"
	apphttp "github.com/lnurlw/backend/internal/http"
	"github.com/lnurlw/backend/internal/http/handlers"
	"github.com/lnurlw/backend/internal/repositories"
	"github.com/lnurlw/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	linkRepo := repositories.NewLinkRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)

	// Events
	bus := events.NewBus(rdb, log)

	// Services
	lightning := services.NewLightningClient(cfg.LightningBackendURL, log)
	notifier := services.NewWebhookNotifier(cfg.WebhookSecret, log)
	linkService := services.NewLinkService(linkRepo, walletRepo, paymentRepo, bus, log)
	redemptionService := services.NewRedemptionService(linkRepo, walletRepo, paymentRepo, lightning, notifier, bus, log)

	// Handlers
	walletHandler := handlers.NewWalletHandler(walletRepo, log)
	linkHandler := handlers.NewLinkHandler(linkService, cfg.BaseURL, log)
	lnurlHandler := handlers.NewLnurlHandler(linkRepo, redemptionService, cfg.BaseURL, log)
	wsHub := handlers.NewWSHub(walletRepo, bus, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, walletRepo, walletHandler, linkHandler, lnurlHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
