package gormstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrate

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore/migrations"
)

// Migrate applies pending PostgreSQL schema migrations using
// golang-migrate. It is the production counterpart to AutoMigrate: the
// SQLite dev path migrates itself on Open, while Postgres schema is
// expected to be advanced deliberately (by the "depositsvc migrate"
// CLI command) against a shared, possibly multi-node database.
// golang-migrate takes a Postgres advisory lock for the duration of
// the run, so concurrent invocations across replicas serialize safely
// rather than racing.
func Migrate(ctx context.Context, cfg *PostgresConfig) error {
	if cfg == nil {
		return fmt.Errorf("gormstore: postgres config is required for migration")
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("gormstore: failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("gormstore: failed to ping database: %w", err)
	}

	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("gormstore: failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("gormstore: failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("gormstore: failed to create migrate instance: %w", err)
	}

	logger.Info("applying database migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("gormstore: migration failed: %w", err)
	} else if err == migrate.ErrNoChange {
		logger.Info("no migrations to apply, database is up to date")
	} else {
		logger.Info("migrations applied successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("gormstore: failed to read migration version: %w", err)
	}
	if err == migrate.ErrNilVersion {
		logger.Info("no migrations applied yet")
	} else {
		logger.Info("current schema version", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("database schema is in a dirty state, manual intervention may be required")
		}
	}

	return nil
}
