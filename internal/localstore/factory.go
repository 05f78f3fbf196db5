package localstore

import (
	"fmt"
	"os"
	"path/filepath"

	"lbm-go/internal/config"
	"lbm-go/internal/lbm"
)

// NewLocalStoreFromConfig creates the configured LocalStore backend.
func NewLocalStoreFromConfig(cfg *config.Config) (lbm.LocalStore, error) {
	switch cfg.Store.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return nil, fmt.Errorf("sqlite store needs a data directory")
		}
		if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.Store.DataDir, "lbm.db"))
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}
}
