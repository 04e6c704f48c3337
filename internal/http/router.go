package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/lnurlw/backend/internal/config"
	"github.com/lnurlw/backend/internal/http/handlers"
	"github.com/lnurlw/backend/internal/middleware"
	"github.com/lnurlw/backend/internal/repositories"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	walletRepo *repositories.WalletRepo,
	walletHandler *handlers.WalletHandler,
	linkHandler *handlers.LinkHandler,
	lnurlHandler *handlers.LnurlHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Api-Key, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Public LNURL redemption flow; the bearer of the link is the credential,
	// so the rate limit is the only gate.
	public := api.Group("/lnurl", middleware.RateLimitMiddleware(rdb, cfg.LNURLRateLimit, cfg.LNURLRateLimitWindow))
	public.Get("/cb", lnurlHandler.Callback)
	public.Get("/:uniqueHash", lnurlHandler.FirstStep)
	public.Get("/:uniqueHash/:voucherHash", lnurlHandler.FirstStep)

	// Wallet bootstrap (public, rate-limited)
	api.Post("/wallets", middleware.RateLimitMiddleware(rdb, 10, cfg.LNURLRateLimitWindow), walletHandler.CreateWallet)

	// Capability-key protected surface: invoice key reads, admin key mutates.
	keyed := api.Group("", middleware.KeyAuthMiddleware(walletRepo, log))

	keyed.Get("/wallet", walletHandler.GetWallet)
	keyed.Post("/wallet/topup", middleware.RequireAdminKey(), walletHandler.Topup)

	keyed.Get("/links", linkHandler.ListLinks)
	keyed.Get("/links/export", linkHandler.ExportLinks)
	keyed.Get("/links/:id", linkHandler.GetLink)
	keyed.Get("/links/:id/lnurl", linkHandler.GetLnurl)
	keyed.Get("/links/:id/payments", linkHandler.ListPayments)

	admin := keyed.Group("", middleware.RequireAdminKey())
	admin.Post("/links", linkHandler.CreateLink)
	admin.Put("/links/:id", linkHandler.UpdateLink)
	admin.Delete("/links/:id", linkHandler.DeleteLink)

	// WebSocket event feed
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
