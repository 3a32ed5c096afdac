//go:build integration

package gormstore_test

import (
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
	"github.com/eclipse-pass/depositsvc/pkg/store/storetest"
)

// postgresFactory starts one Postgres container per test, applies the
// golang-migrate migrations (the production schema path, as opposed
// to the SQLite dev path's AutoMigrate), and hands back a Store.
func postgresFactory(t *testing.T) store.RecordStore {
	t.Helper()
	ctx := t.Context()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("depositsvc"),
		postgres.WithUsername("depositsvc"),
		postgres.WithPassword("depositsvc"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	pgCfg := gormstore.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "depositsvc",
		User:     "depositsvc",
		Password: "depositsvc",
		SSLMode:  "disable",
	}

	if err := gormstore.Migrate(ctx, &pgCfg); err != nil {
		t.Fatalf("gormstore.Migrate: %v", err)
	}

	s, err := gormstore.Open(ctx, &gormstore.Config{
		Type:     gormstore.DatabaseTypePostgres,
		Postgres: pgCfg,
	})
	if err != nil {
		t.Fatalf("gormstore.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformancePostgres(t *testing.T) {
	storetest.RunConformanceSuite(t, postgresFactory)
}
