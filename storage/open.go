package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-wishlist-tracker/config"
)

// Open builds the backend selected by cfg, wrapped in a CachedStore when CacheSize is positive.
func Open(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("storage backend ready", slog.String("backend", cfg.Backend))

	if cfg.CacheSize <= 0 {
		return store, nil
	}
	cached, err := NewCachedStore(store, cfg.CacheSize)
	if err != nil {
		Close(store)
		return nil, err
	}
	return cached, nil
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Root), nil
	case config.BackendGCS:
		store, err := NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix), nil
	case config.BackendMemcache:
		return NewMemcacheStore(cfg.MemcacheAddr), nil
	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.PostgresDSN, cfg.PostgresTable)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
