package commands

import (
	"fmt"

	"github.com/biodoia/gocareerflow/pkg/models"
	"github.com/spf13/cobra"
)

// MigrateCmd rappresenta il comando migrate
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long: `Manage database schema migrations.

This command allows you to run, reset and inspect the database schema
used for request logs and workflow runs.`,
	Example: `  # Run all pending migrations
  careerflow migrate up

  # Reset database (drop and recreate)
  careerflow migrate reset --confirm

  # Show schema status
  careerflow migrate status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending migrations",
	Long:  `Run all pending database migrations to bring the schema up to date.`,
	Example: `  # Run migrations
  careerflow migrate up

  # Run migrations with specific config
  careerflow migrate up -c config.yaml`,
	RunE: runMigrateUp,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset database",
	Long:  `Drop all tables and recreate the schema. This will delete all data.`,
	Example: `  # Reset database (requires confirmation)
  careerflow migrate reset --confirm`,
	RunE: runMigrateReset,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  `Display whether the expected tables exist in the database.`,
	Example: `  # Show migration status
  careerflow migrate status`,
	RunE: runMigrateStatus,
}

var migrateConfirm bool

func init() {
	migrateResetCmd.Flags().BoolVar(&migrateConfirm, "confirm", false, "Confirm reset action")

	MigrateCmd.AddCommand(migrateUpCmd)
	MigrateCmd.AddCommand(migrateResetCmd)
	MigrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Running database migrations...")

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("Migrations completed successfully")
	return nil
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	if !migrateConfirm {
		return fmt.Errorf("reset requires --confirm (this deletes all data)")
	}

	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Dropping tables...")

	if err := db.Migrator().DropTable(&models.RequestLog{}, &models.WorkflowRun{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	fmt.Println("Recreating schema...")

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("Database reset completed")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tables := []interface{}{
		&models.RequestLog{},
		&models.WorkflowRun{},
	}
	names := []string{"request_logs", "workflow_runs"}

	for i, table := range tables {
		status := "missing"
		if db.Migrator().HasTable(table) {
			status = "ok"
		}
		fmt.Printf("  %-15s %s\n", names[i], status)
	}

	return nil
}
