package database

import (
	"fmt"
	"os"
	"path/filepath"

	"riverbank/internal/config"
)

// NewDatabaseFromConfig opens the bottle store described by cfg.
// The sqlite file is named after the instance so several instances can share a data_dir.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, instanceID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, instanceID+".db"))
	case "memory":
		return NewSQLiteDatabase(MemoryPath)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
