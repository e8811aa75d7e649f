package main

import (
	"fmt"

	"github.com/sguter90/soilmaestro/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply all pending migrations of the configured SQL database.
MongoDB needs no migrations; its indexes are created on connect.`,
	RunE: runMigrate,
}

var migrateStatusOnly bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "only list pending migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	if a.cfg.DBDriver == "mongo" {
		return fmt.Errorf("migrations only apply to the postgres and sqlite drivers")
	}

	dm, err := openDatabaseManager(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer dm.Close()

	runner, err := database.NewMigrationsRunner(dm.GetDB(), dm.Dialect(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}

	pending, err := runner.Pending()
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("Database is up to date.")
		return nil
	}

	fmt.Printf("%d pending migration(s):\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %06d_%s\n", m.Version, m.Name)
	}

	if migrateStatusOnly {
		return nil
	}

	if err := runner.Run(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("Migrations applied successfully.")
	return nil
}
