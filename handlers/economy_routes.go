// handlers/economy_routes.go
package handlers

import (
	"strconv"

	"gacha-card-system/middleware"
	"gacha-card-system/models"
	"gacha-card-system/services"
	"gacha-card-system/utils"
	"gacha-card-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// SetupEconomyRoutes wires signup plus every balance-mutating action.
func SetupEconomyRoutes(app *fiber.App, accounts *services.AccountService, economy *services.Economy, prices *utils.TTLCache, logger zerolog.Logger) {
	// Signup is the only unsecured economy route; the gateway still fronts it.
	app.Post("/signup", func(c *fiber.Ctx) error {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}
		acct, err := accounts.EnsureAccount(c.Context(), req.Username)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(acct)
	})

	secured := app.Group("/s", middleware.UserContext(logger))

	secured.Get("/profile", func(c *fiber.Ctx) error {
		acct, err := accounts.Get(c.Context(), middleware.AccountID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(acct)
	})

	secured.Post("/draw", func(c *fiber.Ctx) error {
		var req struct {
			PackType       string `json:"pack_type"`
			Count          int    `json:"count"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}
		if req.Count == 0 {
			req.Count = 1
		}

		result, err := economy.Execute(c.Context(), middleware.AccountID(c), services.ActionSpec{
			Type:           services.ActionDraw,
			PackType:       req.PackType,
			Count:          req.Count,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"items":        result.Items,
			"new_balances": result.NewBalances,
			"replayed":     result.Replayed,
		})
	})

	secured.Post("/token/claim", func(c *fiber.Ctx) error {
		result, err := economy.Execute(c.Context(), middleware.AccountID(c), services.ActionSpec{
			Type: services.ActionClaimDailyToken,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"granted":          result.Granted,
			"new_balance":      result.NewBalances.Tickets,
			"next_eligible_at": result.NextEligibleAt,
		})
	})

	secured.Post("/packs/purchase", func(c *fiber.Ctx) error {
		var req struct {
			Kind           string `json:"kind"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}

		result, err := economy.Execute(c.Context(), middleware.AccountID(c), services.ActionSpec{
			Type:           services.ActionPurchasePack,
			PackType:       req.Kind,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return respondError(c, err)
		}

		response := fiber.Map{
			"items":        result.Items,
			"new_balances": result.NewBalances,
			"replayed":     result.Replayed,
		}
		// Fiat quote is display-only; a cold rate cache just omits it.
		if rate, ok := workers.RateFor(prices, "USD"); ok {
			response["usd_per_coin"] = rate
		}
		return c.JSON(response)
	})

	secured.Post("/battle/result", func(c *fiber.Ctx) error {
		var req struct {
			OpponentID     string `json:"opponent_id"`
			Outcome        string `json:"outcome"`
			Mode           string `json:"mode"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "error_kind": "InvalidRequest"})
		}

		result, err := economy.Execute(c.Context(), middleware.AccountID(c), services.ActionSpec{
			Type:           services.ActionBattleResult,
			OpponentID:     req.OpponentID,
			Outcome:        models.BattleOutcome(req.Outcome),
			Mode:           req.Mode,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"prestige_points": result.PrestigePoints,
			"new_balances":    result.NewBalances,
		})
	})

	secured.Get("/cards", func(c *fiber.Ctx) error {
		cards, err := accounts.Cards(c.Context(), middleware.AccountID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"cards": cards})
	})

	secured.Post("/cards/:id/levelup", func(c *fiber.Ctx) error {
		level, err := strconv.Atoi(c.Query("level", "1"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid level", "error_kind": "InvalidRequest"})
		}
		upgraded, err := accounts.LevelUpCard(c.Context(), middleware.AccountID(c), c.Params("id"), level)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(upgraded)
	})
}
