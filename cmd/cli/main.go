package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sguter90/soilmaestro/pkg/config"
	"github.com/spf13/cobra"
)

type contextKey string

const appKey contextKey = "app"

// app carries the loaded configuration and logger to the subcommands
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

var rootCmd = &cobra.Command{
	Use:   "soilmaestro",
	Short: "SoilMaestro - Soil Sensor Ingest Service",
	Long: `SoilMaestro ingests soil moisture, temperature and humidity readings
from field devices and stores only those that changed significantly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger := cfg.NewLogger()
		slog.SetDefault(logger)

		cmd.SetContext(context.WithValue(cmd.Context(), appKey, &app{cfg: cfg, logger: logger}))
		return nil
	},
}

// appFrom returns the application state set up by the root command
func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey).(*app)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
