package testutil

import (
	"path/filepath"
	"testing"

	"mcard-go/internal/config"
	"mcard-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite store with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(database.MemoryPath, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewFileDatabase opens a migrated SQLite file store under t.TempDir().
func NewFileDatabase(t *testing.T, maxConnections int) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(config.StoreConfig{
		Type:               "sqlite",
		Path:               filepath.Join(t.TempDir(), "store.db"),
		MaxConnections:     maxConnections,
		LockTimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
