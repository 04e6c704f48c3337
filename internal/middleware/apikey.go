package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lnurlw/backend/internal/models"
	"github.com/lnurlw/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	CtxWallet  = "wallet"
	CtxKeyType = "key_type"
)

// KeyAuthMiddleware resolves the X-Api-Key capability key to its wallet.
// The invoice key authorizes reads, the admin key everything.
func KeyAuthMiddleware(wallets *repositories.WalletRepo, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("X-Api-Key")
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing X-Api-Key header"})
		}

		wallet, keyType, err := wallets.GetByKey(c.Context(), key)
		if err != nil {
			log.Debug("api key lookup failed", zap.Error(err))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid api key"})
		}

		c.Locals(CtxWallet, wallet)
		c.Locals(CtxKeyType, keyType)

		return c.Next()
	}
}

// RequireAdminKey gates mutations behind the admin capability key.
func RequireAdminKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetKeyType(c) != models.KeyTypeAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin key required"})
		}
		return c.Next()
	}
}

func GetWallet(c *fiber.Ctx) *models.Wallet {
	w, _ := c.Locals(CtxWallet).(*models.Wallet)
	return w
}

func GetKeyType(c *fiber.Ctx) string {
	t, _ := c.Locals(CtxKeyType).(string)
	return t
}
