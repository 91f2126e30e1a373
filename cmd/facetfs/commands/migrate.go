package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/logger"
	"github.com/marmos91/facetfs/pkg/facet/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the PostgreSQL metadata store.

This command applies pending schema migrations to the configured PostgreSQL
database. It is required after upgrading facetfs when schema changes have
been made. SQLite and in-memory stores migrate themselves on startup and do
not need this command.

Examples:
  # Run migrations with default config
  facetfs migrate

  # Run migrations with custom config
  facetfs migrate --config /etc/facetfs/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Store.Type != "postgres" {
		fmt.Printf("Store type %q migrates on startup; nothing to do.\n", cfg.Store.Type)
		return nil
	}

	logger.Info("Running database migrations", "database", cfg.Store.Postgres.Database)

	if err := postgres.RunMigrations(context.Background(), &cfg.Store.Postgres); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
