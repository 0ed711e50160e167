// ABOUTME: Opens the configured document backend
// ABOUTME: Maps storage config onto the file or sqlite kvstore implementations

package server

import (
	"fmt"
	"log/slog"

	"github.com/2389/statekeeper/internal/config"
	"github.com/2389/statekeeper/internal/kvstore"
)

// OpenStore opens the backend selected by cfg.
func OpenStore(cfg config.StorageConfig, logger *slog.Logger) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		s, err := kvstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initializing file store: %w", err)
		}
		logger.Info("using file store", "data_dir", cfg.DataDir)
		return s, nil
	case config.BackendSQLite:
		s, err := kvstore.NewSQLiteStore(cfg.Path, kvstore.SQLiteOptions{
			Driver:      cfg.Driver,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.Path, "driver", cfg.Driver)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
