package main

import (
	"errors"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/setup"
	"github.com/linkup-dev/linkup/internal/storage/pg"
	"github.com/linkup-dev/linkup/internal/sweep"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg().UsesPostgres() {
				return errors.New("migrate needs storage: postgres")
			}
			storage, err := pg.New(cmd.Context(), cfg().Private.Pg, pg.LightweightConnectionConfig())
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Log.Info("migrations applied")
			return nil
		},
	}
}

// newSweepCmd runs one purge of accounts past their recovery deadline, for cron style scheduling.
func newSweepCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Hard-delete accounts whose recovery window has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg().UsesPostgres() {
				return errors.New("sweep needs storage: postgres, the memory store lives inside the server")
			}
			storage, err := setup.OpenStorage(cmd.Context(), cfg(), pg.LightweightConnectionConfig())
			if err != nil {
				return err
			}
			defer storage.Close()

			purged, err := sweep.New(storage, nil).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			logger.Log.Info("sweep finished", "purged", purged)
			return nil
		},
	}
}
