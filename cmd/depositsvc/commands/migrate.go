package commands

import (
	"context"
	"fmt"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the record store.

This command applies pending schema migrations to the configured record
store (SQLite or PostgreSQL). It is required after upgrading depositsvc when
schema changes have been made.

Examples:
  # Run migrations with default config
  depositsvc migrate

  # Run migrations with custom config
  depositsvc migrate --config /etc/depositsvc/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("running database migrations", "type", cfg.Database.Type)

	ctx := context.Background()
	rs, err := gormstore.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = rs.Close() }()

	if err := rs.Healthcheck(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
