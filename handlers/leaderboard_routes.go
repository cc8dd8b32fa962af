// handlers/leaderboard_routes.go
package handlers

import (
	"strconv"

	"gacha-card-system/middleware"
	"gacha-card-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Top-N leaderboards are public reads; the around-me view needs the
// caller's identity.
func SetupLeaderboardRoutes(app *fiber.App, leaderboards *services.LeaderboardService, logger zerolog.Logger) {
	app.Get("/leaderboard/score", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		entries, err := leaderboards.TopScore(c.Context(), limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	app.Get("/leaderboard/prestige", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		entries, err := leaderboards.TopPrestige(c.Context(), limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	secured := app.Group("/s/leaderboard", middleware.UserContext(logger))

	secured.Get("/around", func(c *fiber.Ctx) error {
		radius, _ := strconv.Atoi(c.Query("radius", "5"))
		entries, err := leaderboards.AroundScore(c.Context(), middleware.AccountID(c), radius)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})
}
