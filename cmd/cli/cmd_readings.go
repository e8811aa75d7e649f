package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sguter90/soilmaestro/pkg/models"
	"github.com/spf13/cobra"
)

var readingsCmd = &cobra.Command{
	Use:   "readings",
	Short: "Inspect stored readings",
}

var readingsLatestCmd = &cobra.Command{
	Use:   "latest [userId]",
	Short: "Show the most recent reading",
	Long:  `Show the most recent reading overall, or of the given user.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReadingsLatest,
}

var readingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored readings, newest first",
	RunE:  runReadingsList,
}

var readingsPage, readingsLimit int

func init() {
	rootCmd.AddCommand(readingsCmd)
	readingsCmd.AddCommand(readingsLatestCmd)
	readingsCmd.AddCommand(readingsListCmd)
	addServerFlag(readingsCmd)

	readingsListCmd.Flags().IntVar(&readingsPage, "page", 1, "page number")
	readingsListCmd.Flags().IntVar(&readingsLimit, "limit", 20, "readings per page")
}

func runReadingsLatest(cmd *cobra.Command, args []string) error {
	client := apiClient(cmd)

	var reading *models.Reading
	var err error
	if len(args) == 1 {
		reading, err = client.LatestForUser(cmd.Context(), args[0])
	} else {
		reading, err = client.Latest(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to fetch latest reading: %w", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:            %s\n", reading.ID)
	fmt.Printf("User:          %s\n", reading.UserID)
	fmt.Printf("Soil moisture: %g\n", reading.SoilMoisture)
	fmt.Printf("Temperature:   %g\n", reading.Temperature)
	fmt.Printf("Humidity:      %g\n", reading.Humidity)
	if reading.Latitude.Valid && reading.Longitude.Valid {
		fmt.Printf("Location:      %.6f, %.6f\n", reading.Latitude.Float64, reading.Longitude.Float64)
	}
	fmt.Printf("Created:       %s\n", reading.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 60))
	return nil
}

func runReadingsList(cmd *cobra.Command, args []string) error {
	resp, err := apiClient(cmd).ListReadings(cmd.Context(), readingsPage, readingsLimit)
	if err != nil {
		return fmt.Errorf("failed to list readings: %w", err)
	}

	if len(resp.Data) == 0 {
		fmt.Println("No readings found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tUSER\tSOIL\tTEMP\tHUM")
	for _, r := range resp.Data {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.UserID, r.SoilMoisture, r.Temperature, r.Humidity)
	}
	w.Flush()

	fmt.Printf("\nPage %d of %d (%d readings)\n", resp.Page, resp.TotalPages, resp.Total)
	return nil
}
