package gormstore_test

import (
	"path/filepath"
	"testing"

	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
	"github.com/eclipse-pass/depositsvc/pkg/store/storetest"
)

func sqliteFactory(t *testing.T) store.RecordStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "depositsvc.db")
	s, err := gormstore.Open(t.Context(), &gormstore.Config{
		Type:   gormstore.DatabaseTypeSQLite,
		SQLite: gormstore.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("gormstore.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformanceSQLite(t *testing.T) {
	storetest.RunConformanceSuite(t, sqliteFactory)
}
