package main

import (
	"fmt"

	"github.com/sguter90/soilmaestro/pkg/models"
	"github.com/spf13/cobra"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Show or change the change-significance thresholds",
	Long: `Show or change the minimum per-field change a reading must have to be
stored. Changes are applied by the running server immediately.`,
}

var thresholdGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active thresholds",
	RunE:  runThresholdGet,
}

var thresholdSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more thresholds",
	Long:  `Change one or more thresholds. Thresholds not given keep their value.`,
	RunE:  runThresholdSet,
}

var thresholdSoil, thresholdTemp, thresholdHum float64

func init() {
	rootCmd.AddCommand(thresholdCmd)
	thresholdCmd.AddCommand(thresholdGetCmd)
	thresholdCmd.AddCommand(thresholdSetCmd)
	addServerFlag(thresholdCmd)

	thresholdSetCmd.Flags().Float64Var(&thresholdSoil, "soil", 0, "soil moisture threshold")
	thresholdSetCmd.Flags().Float64Var(&thresholdTemp, "temp", 0, "temperature threshold")
	thresholdSetCmd.Flags().Float64Var(&thresholdHum, "hum", 0, "humidity threshold")
}

func runThresholdGet(cmd *cobra.Command, args []string) error {
	cfg, err := apiClient(cmd).Thresholds(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch thresholds: %w", err)
	}

	printThresholds(cfg)
	return nil
}

func runThresholdSet(cmd *cobra.Command, args []string) error {
	var input models.ThresholdInput
	flags := cmd.Flags()
	if flags.Changed("soil") {
		input.SoilThreshold = models.NewNumber(thresholdSoil)
	}
	if flags.Changed("temp") {
		input.TempThreshold = models.NewNumber(thresholdTemp)
	}
	if flags.Changed("hum") {
		input.HumThreshold = models.NewNumber(thresholdHum)
	}

	if !input.SoilThreshold.Present() && !input.TempThreshold.Present() && !input.HumThreshold.Present() {
		return fmt.Errorf("nothing to change: pass at least one of --soil, --temp, --hum")
	}

	cfg, err := apiClient(cmd).SetThresholds(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("failed to update thresholds: %w", err)
	}

	fmt.Println("Thresholds updated.")
	printThresholds(cfg)
	return nil
}

func printThresholds(cfg *models.ThresholdConfig) {
	fmt.Printf("Soil moisture: %g\n", cfg.SoilThreshold)
	fmt.Printf("Temperature:   %g\n", cfg.TempThreshold)
	fmt.Printf("Humidity:      %g\n", cfg.HumThreshold)
	fmt.Printf("Version:       %d\n", cfg.Version)
	if !cfg.UpdatedAt.IsZero() {
		fmt.Printf("Updated:       %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
