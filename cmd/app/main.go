package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gacha-bot-backend/internal/common/config"
	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/delivery/bot"
	deliveryhttp "gacha-bot-backend/internal/delivery/http"
	"gacha-bot-backend/internal/domain/state"
	"gacha-bot-backend/internal/engine"
	redisplatform "gacha-bot-backend/internal/platform/redis"
	"gacha-bot-backend/internal/platform/telegram"
	"gacha-bot-backend/internal/repository/redisrepo"
	"gacha-bot-backend/internal/service/access"
	"gacha-bot-backend/internal/service/cooldown"
	"gacha-bot-backend/internal/service/entitlement"
	"gacha-bot-backend/internal/service/gacha"
	"gacha-bot-backend/internal/service/referral"
)

func main() {
	cfg := config.Load()

	logger.Init("gacha-bot-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("Starting Gacha Bot Backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisplatform.New(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	logger.Info().Msg("Redis connection established")

	repo := redisrepo.NewStateRepository(rdb)
	if err := seedState(ctx, repo, cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed state")
	}

	tgClient := telegram.NewClient(cfg.Telegram.BotToken)

	ledger := entitlement.New()
	gate := access.NewGate(tgClient, cfg.Telegram.MainChannel, cfg.Telegram.PremiumChannel)
	throttle := cooldown.New()
	gachaSvc := gacha.NewService(ledger)
	referralSvc := referral.NewService(ledger, tgClient)

	tgBot, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, cfg.Gacha.GroupOnly, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	eng := engine.New(repo, gate, throttle, ledger, gachaSvc, referralSvc, tgClient, tgBot.Username())
	if len(cfg.Gacha.AdminIDs) > 0 {
		eng.SetPrimaryOwner(cfg.Gacha.AdminIDs[0])
	}
	tgBot.SetEngine(eng)
	logger.Info().Msg("Engine initialized")

	router := deliveryhttp.NewRouter(cfg, eng, rdb)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	go func() {
		if err := tgBot.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("Bot loop stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
	os.Exit(0)
}

// seedState applies the environment configuration to the persisted
// document: configured admins always join the admin set, limit and
// password overrides replace the built-in defaults.
func seedState(ctx context.Context, repo state.Repository, cfg *config.Config) error {
	doc, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	for _, id := range cfg.Gacha.AdminIDs {
		doc.AddAdmin(id)
	}
	if cfg.Gacha.DailyLimitFree > 0 {
		doc.Settings.DailyLimitFree = cfg.Gacha.DailyLimitFree
	}
	if cfg.Gacha.DailyLimitPremium > 0 {
		doc.Settings.DailyLimitPremium = cfg.Gacha.DailyLimitPremium
	}
	doc.Settings.GroupOnly = cfg.Gacha.GroupOnly
	if doc.PrivateMode.Password == state.DefaultPrivatePassword && cfg.Gacha.PrivatePassword != "" {
		doc.PrivateMode.Password = cfg.Gacha.PrivatePassword
	}

	return repo.Save(ctx, doc)
}
