// handlers/clan_routes.go
package handlers

import (
	"gacha-card-system/middleware"
	"gacha-card-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupClanRoutes(app *fiber.App, clans *services.ClanService, economy *services.Economy, logger zerolog.Logger) {
	secured := app.Group("/s/clans", middleware.UserContext(logger))

	secured.Post("/", func(c *fiber.Ctx) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}
		clan, err := clans.Create(c.Context(), middleware.AccountID(c), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(clan)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		clan, expansion, err := clans.Get(c.Context(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"clan": clan, "expansion": expansion})
	})

	secured.Post("/:id/join", func(c *fiber.Ctx) error {
		clan, err := clans.Join(c.Context(), middleware.AccountID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(clan)
	})

	secured.Post("/leave", func(c *fiber.Ctx) error {
		if err := clans.Leave(c.Context(), middleware.AccountID(c)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "left clan"})
	})

	secured.Post("/:id/donate", func(c *fiber.Ctx) error {
		var req struct {
			Amount         int64  `json:"amount"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}

		result, err := economy.Execute(c.Context(), middleware.AccountID(c), services.ActionSpec{
			Type:           services.ActionDonate,
			ClanID:         c.Params("id"),
			Amount:         req.Amount,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"new_balances": result.NewBalances,
			"expansion":    result.Expansion,
		})
	})
}
