package database

import (
	"fmt"
	"time"

	"mcard-go/internal/config"
)

// NewDatabaseFromConfig opens the store described by cfg and migrates it to
// the latest schema.
func NewDatabaseFromConfig(cfg config.StoreConfig) (*SQLiteDatabase, error) {
	opts := Options{
		MaxConnections: cfg.MaxConnections,
		LockTimeout:    time.Duration(cfg.LockTimeoutSeconds) * time.Second,
	}

	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite store")
		}
		path = cfg.Path
	case "memory":
		path = MemoryPath
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, opts)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return db, nil
}
