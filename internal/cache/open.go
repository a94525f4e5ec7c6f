package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/storage"
)

// Open selects a backend according to cfg.Backend and returns a store over it.
//
// "auto" and "sqlite" try SQLite first and fall back to the disk blob backend,
// then to memory. The fallback is permanent for the life of the store and no
// entries are migrated between backends.
func Open(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("cache backend selected", zap.String("backend", backend.Name()))
	store, err := New(ctx, backend,
		WithLogger(logger),
		WithMaxEntries(cfg.MaxEntries),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

func openBackend(cfg config.CacheConfig, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryBackend(cfg.BlobCapacityBytes), nil
	case "disk":
		if cfg.BlobDir == "" {
			return nil, fmt.Errorf("disk cache backend requires blob_dir")
		}
		return storage.NewDiskBackend(cfg.BlobDir, cfg.BlobCapacityBytes)
	case "", "auto", "sqlite":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	if cfg.DatabasePath != "" {
		backend, err := storage.NewSQLiteBackend(cfg.DatabasePath)
		if err == nil {
			return backend, nil
		}
		logger.Warn("sqlite cache unavailable, falling back to disk", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	if cfg.BlobDir != "" {
		backend, err := storage.NewDiskBackend(cfg.BlobDir, cfg.BlobCapacityBytes)
		if err == nil {
			return backend, nil
		}
		logger.Warn("disk cache unavailable, falling back to memory", zap.String("dir", cfg.BlobDir), zap.Error(err))
	}
	return storage.NewMemoryBackend(cfg.BlobCapacityBytes), nil
}
