package handlers

import (
	"gacha-card-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps engine errors onto the stable error envelope. Anything
// that is not an EconomyError is an internal failure and stays opaque.
func respondError(c *fiber.Ctx, err error) error {
	if ee, ok := services.AsEconomyError(err); ok {
		body := fiber.Map{
			"error":      ee.Message,
			"error_kind": string(ee.Kind),
		}
		if ee.Kind == services.KindRateLimited {
			body["retry_after_seconds"] = int64(ee.RetryAfter.Seconds())
		}
		return c.Status(ee.HTTPStatus()).JSON(body)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal error",
		"error_kind": "Internal",
	})
}
