package main

import (
	"fmt"
	"log/slog"

	"github.com/codesnap/codesnap/config"
	"github.com/codesnap/codesnap/internal/services"
	"github.com/codesnap/codesnap/storage"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema, indexes or table of the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(cfg *config.Config, store storage.PasteStore, _ *slog.Logger) error {
				m, ok := store.(storage.Migrator)
				if !ok {
					return fmt.Errorf("storage %s does not support migrations", cfg.StorageType)
				}
				if err := m.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied successfully (%s).\n", cfg.StorageType)
				return nil
			})
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the example pastes when the store is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, func(service *services.PasteService) error {
				n, err := service.Seed(cmd.Context())
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Store already has pastes, nothing seeded.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d example pastes.\n", n)
				return nil
			})
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired pastes from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, func(service *services.PasteService) error {
				n, err := service.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired pastes.\n", n)
				return nil
			})
		},
	}
}
