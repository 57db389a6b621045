package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/router"
	"github.com/linkup-dev/linkup/internal/setup"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var noSweep bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := setup.SetupDependencies(ctx, cfg())
			if err != nil {
				return err
			}
			defer deps.Close()

			deps.RateLimits.StartJanitors(ctx, 10*time.Minute)
			if !noSweep {
				deps.Sweeper.Start(ctx, cfg().Public.SweepInterval)
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg().Public.HttpPort),
				Handler:           router.New(deps),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Log.Info("server started", "addr", srv.Addr, "storage", cfg().Public.Storage)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	c.Flags().BoolVar(&noSweep, "no-sweep", false, "don't run the background sweep, e.g. when an external scheduler runs `linkup sweep`")
	return c
}
