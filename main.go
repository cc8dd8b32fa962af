package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gacha-card-system/handlers"
	"gacha-card-system/middleware"
	"gacha-card-system/models"
	"gacha-card-system/services"
	"gacha-card-system/store"
	"gacha-card-system/utils"
	"gacha-card-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("no .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// All traffic must come through the gateway; no exceptions.
	gatewayToken := os.Getenv("GATEWAY_TOKEN")
	if gatewayToken == "" {
		logger.Fatal().Msg("GATEWAY_TOKEN environment variable not set")
	}
	app.Use(middleware.GatewayAuth(gatewayToken, logger))

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		logger.Warn().Msg("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL environment variable not set")
	}

	// TranslateError maps driver unique-violation errors onto
	// gorm.ErrDuplicatedKey, which the ledger relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Card{},
		&models.UserCard{},
		&models.Clan{},
		&models.DonationLog{},
		&models.MissionProgress{},
		&models.MissionClaim{},
		&models.TimeWindow{},
		&models.PrestigeRecord{},
		&models.BattleModeConfig{},
		&models.PurchaseLog{},
		&models.BattleLog{},
		&models.ActionReceipt{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ledger := store.NewGormLedger(db)
	clock := store.RealClock()

	catalog := services.NewCatalogService(ledger, nil, logger)
	if err := catalog.Seed(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed card catalog")
	}

	resolver := services.NewResolver(catalog, nil)
	gate := services.NewGate(ledger, clock, logger)
	missions := services.NewMissionTracker(ledger, clock, logger)
	bans := services.ParseBanList(os.Getenv("BANNED_USERNAMES"))

	economy := services.NewEconomy(ledger, resolver, gate, missions, bans, clock, logger)
	accounts := services.NewAccountService(ledger, clock, logger)
	clans := services.NewClanService(ledger, logger)
	leaderboards := services.NewLeaderboardService(ledger)

	maintenance := services.NewMaintenanceService(ledger, clock, logger)
	if err := maintenance.StartSweep(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start maintenance sweep")
	}
	defer maintenance.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rates := utils.NewTTLCache(15*time.Minute, nil)
	if exchangeURL := os.Getenv("EXCHANGE_SERVICE_URL"); exchangeURL != "" {
		client := workers.NewExchangeRateClient(exchangeURL, os.Getenv("EXCHANGE_SERVICE_TOKEN"), rates, logger)
		go workers.PollRates(ctx, client, 5*time.Minute)
	}

	handlers.SetupEconomyRoutes(app, accounts, economy, rates, logger)
	handlers.SetupClanRoutes(app, clans, economy, logger)
	handlers.SetupMissionRoutes(app, missions, logger)
	handlers.SetupLeaderboardRoutes(app, leaderboards, logger)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}()

	logger.Info().Str("addr", ":5200").Msg("server running")

	<-ctx.Done()
	logger.Info().Msg("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
