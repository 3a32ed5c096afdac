package gormstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Store implements store.RecordStore over GORM.
type Store struct {
	db     *gorm.DB
	config *Config
}

// allModels lists every GORM model migrated by AutoMigrate (SQLite
// dev path) and described by the embedded SQL migrations (Postgres
// production path).
func allModels() []any {
	return []any{
		&store.Submission{},
		&store.Deposit{},
		&store.Repository{},
		&store.RepositoryCopy{},
	}
}

// Open connects to the configured backend and, for SQLite, runs
// AutoMigrate. Postgres schema is managed by Migrate (see migrate.go)
// unless config.Postgres.AutoMigrate is set, which is intended for
// local development and integration tests only.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gormstore: invalid configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("gormstore: failed to create database directory: %w", err)
		}
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case DatabaseTypePostgres:
		dialector = postgres.Open(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("gormstore: unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: failed to connect: %w", err)
	}

	if cfg.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gormstore: failed to get underlying *sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	if cfg.Type == DatabaseTypeSQLite || cfg.Postgres.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
			return nil, fmt.Errorf("gormstore: auto-migration failed: %w", err)
		}
		// AutoMigrate only derives indexes from struct tags, which can't
		// express the partial uniqueness migrations/0003 gives Postgres;
		// apply it by hand so the SQLite dev path enforces I2 the same way.
		if err := db.WithContext(ctx).Exec(activeDepositIndexSQL).Error; err != nil {
			return nil, fmt.Errorf("gormstore: failed to create active-deposit index: %w", err)
		}
	}

	return &Store{db: db, config: cfg}, nil
}

// activeDepositIndexSQL mirrors migrations/0003_unique_active_deposit.up.sql.
const activeDepositIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_active_pair
	ON deposits (submission_id, repository_id)
	WHERE deposit_status NOT IN ('accepted', 'rejected')`

// DB returns the underlying *gorm.DB, for use by Migrate and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Healthcheck verifies connectivity to the backing database.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.NewUnavailableError(err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return store.NewUnavailableError(err.Error())
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.RecordStore = (*Store)(nil)
