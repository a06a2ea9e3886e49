package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/config"
)

// setupCacheBackend returns the configured cache backend. A Redis backend
// must answer a ping before the server starts.
func setupCacheBackend(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Backend, error) {
	switch cfg.Driver {
	case config.CacheDriverRedis:
		backend := cache.NewRedisBackend(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}

		logger.Info("Cache backend initialized", "driver", cfg.Driver, "addr", cfg.RedisAddr)
		return backend, nil

	case config.CacheDriverMemory:
		logger.Warn("Cache backend is in-process and not shared across replicas",
			"driver", cfg.Driver)
		return cache.NewMemoryBackend(), nil

	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
