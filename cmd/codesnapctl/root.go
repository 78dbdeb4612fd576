package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/codesnap/codesnap/storage"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "codesnapctl",
		Short:         "Maintenance commands for the codesnap paste store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file (default $CODESNAP_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log backend activity")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newSweepCmd(opts),
		newHashPasswordCmd(),
	)

	return cmd
}

// withStore loads the configuration the server would use and opens its store
func withStore(opts *rootOptions, fn func(cfg *config.Config, store storage.PasteStore, logger *slog.Logger) error) error {
	var args []string
	if opts.configPath != "" {
		args = []string{"-config", opts.configPath}
	}
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := storage.NewStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	return fn(cfg, store, logger)
}

// withService is withStore plus a paste service without admin rights
func withService(opts *rootOptions, fn func(service *services.PasteService) error) error {
	return withStore(opts, func(cfg *config.Config, store storage.PasteStore, logger *slog.Logger) error {
		return fn(services.NewPasteService(store, nil, cfg, logger))
	})
}
