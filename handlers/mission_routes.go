// handlers/mission_routes.go
package handlers

import (
	"gacha-card-system/middleware"
	"gacha-card-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupMissionRoutes(app *fiber.App, missions *services.MissionTracker, logger zerolog.Logger) {
	secured := app.Group("/s/missions", middleware.UserContext(logger))

	secured.Get("/", func(c *fiber.Ctx) error {
		status, err := missions.StatusFor(c.Context(), middleware.AccountID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"missions": status})
	})

	secured.Post("/:key/claim", func(c *fiber.Ctx) error {
		result, err := missions.Claim(c.Context(), middleware.AccountID(c), c.Params("key"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})
}
