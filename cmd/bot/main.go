package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/bot"
	"github.com/tazhate/dombot/internal/clients/telegram"
	"github.com/tazhate/dombot/internal/clients/whatsapp"
	"github.com/tazhate/dombot/internal/logger"
	"github.com/tazhate/dombot/internal/ratelimit"
	"github.com/tazhate/dombot/internal/scheduler"
	"github.com/tazhate/dombot/internal/service"
	"github.com/tazhate/dombot/internal/storage"
)

const serviceName = "dombot"

func main() {
	log := logger.New(serviceName, "info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.New(serviceName, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.OpsChatID, cfg.BotName, log)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram alerts disabled")
	}

	// Storage
	backend, err := storage.OpenBackend(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store backend")
	}
	store, err := storage.Open(ctx, backend, cfg.SupremeOwner, storage.Options{
		WriteThrough: cfg.Store.WriteThrough,
		Logger:       log.With().Str("component", "store").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load state")
	}

	// WhatsApp session
	wa, err := whatsapp.NewClient(ctx, whatsapp.Config{
		SessionPath:    cfg.SessionPath,
		PairPhone:      cfg.PairPhone,
		ReconnectDelay: cfg.ReconnectDelay,
	}, notifier, log.With().Str("component", "whatsapp").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init WhatsApp client")
	}

	// Services
	ledger := service.NewLedgerService(store, service.NewLedgerRules(cfg.Economy), cfg.SupremeOwner)
	auth := service.NewAuthService(store, wa, log.With().Str("component", "auth").Logger())
	admins := service.NewAdminService(store, cfg.AuthSecret)
	if !admins.SecretConfigured() {
		log.Warn().Msg("AUTH_SECRET is empty, owner authentication is disabled")
	}

	governor := ratelimit.New(ratelimit.Config{
		Cooldown:    cfg.Limits.Cooldown,
		FloodWindow: cfg.Limits.FloodWindow,
		FloodWarn:   cfg.Limits.FloodWarn,
		FloodBlock:  cfg.Limits.FloodBlock,
	}, nil)

	b := bot.New(bot.Deps{
		Config:    cfg,
		Store:     store,
		Transport: wa,
		Ledger:    ledger,
		Auth:      auth,
		Admins:    admins,
		Governor:  governor,
		Logger:    log.With().Str("component", "bot").Logger(),
	})
	wa.SetHandler(b)
	b.StartAPI()

	sched := scheduler.New(scheduler.Config{
		FlushInterval: cfg.Store.FlushInterval,
		SweepInterval: cfg.Limits.SweepInterval,
	}, store, governor, log.With().Str("component", "scheduler").Logger())
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	log.Info().
		Str("bot", cfg.BotName).
		Str("store", cfg.Store.Driver).
		Bool("write_through", cfg.Store.WriteThrough).
		Msg("Bot started")
	notifier.Notify(ctx, "🚀 Bot started.")

	runErr := wa.Run(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("WhatsApp client stopped")
	}

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := b.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bot")
	}
	sched.Stop()
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error closing store")
	}
	if err := wa.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing WhatsApp session")
	}
	notifier.Notify(shutdownCtx, "🛑 Bot stopped.")

	log.Info().Msg("Bot stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
