package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// UserContext extracts the account identity forwarded by the Gateway.
// Secured routes require X-User-ID; handlers read it via c.Locals.
func UserContext(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID := c.Get("X-User-ID")
		if accountID == "" {
			logger.Warn().Str("path", c.Path()).Msg("secured route called without X-User-ID")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		c.Locals("account_id", accountID)
		return c.Next()
	}
}

// AccountID reads the authenticated account from the request context.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals("account_id").(string)
	return id
}
