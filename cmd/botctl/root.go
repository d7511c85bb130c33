package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tazhate/dombot/config"
	"github.com/tazhate/dombot/internal/logger"
	"github.com/tazhate/dombot/internal/service"
	"github.com/tazhate/dombot/internal/storage"
)

// session is the state one subcommand works on.
type session struct {
	cfg    *config.Config
	store  *storage.Store
	ledger *service.LedgerService
	admins *service.AdminService
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "botctl",
		Short:         "Offline tools for the bot's state store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error).")

	cmd.AddCommand(newRankCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newRolesCmd())
	cmd.AddCommand(newGrantOwnerCmd())

	return cmd
}

// withSession loads config, opens the configured store and runs fn. The store
// is flushed and closed afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	level, _ := cmd.Flags().GetString("log-level")
	log := logger.New("botctl", level)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	s := &session{
		cfg:    cfg,
		store:  store,
		ledger: service.NewLedgerService(store, service.NewLedgerRules(cfg.Economy), cfg.SupremeOwner),
		admins: service.NewAdminService(store, cfg.AuthSecret),
	}

	runErr := fn(ctx, s)
	if err := store.Close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("close store: %w", err)
	}
	return runErr
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.Store, error) {
	backend, err := storage.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Store.Driver, err)
	}
	store, err := storage.Open(ctx, backend, cfg.SupremeOwner, storage.Options{
		WriteThrough: true,
		Logger:       log.With().Str("component", "store").Logger(),
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	return store, nil
}
