package main

import (
	"fmt"
	"os"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	var (
		configFolder string
		cfg          *config.Config
	)
	c := &cobra.Command{
		Use:           "linkup",
		Short:         "Account and social graph service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(configFolder)
			if err != nil {
				return err
			}
			cfg = loaded
			logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)
			return nil
		},
	}
	c.PersistentFlags().StringVar(&configFolder, "config_folder", "config", "path to folder with configs")

	loaded := func() *config.Config { return cfg }
	c.AddCommand(
		newServeCmd(loaded),
		newMigrateCmd(loaded),
		newSweepCmd(loaded),
	)
	return c
}

// loadConfig turns the panics of config.MustLoad into an error for cobra.
func loadConfig(folder string) (cfg *config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return config.MustLoad(folder), nil
}
