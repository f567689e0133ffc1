package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates an idempotency store for the configured
// backend. The redis backend falls back to in-memory with a warning when
// Redis is unreachable.
func NewIdempotencyStore(cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	switch cfg.Idempotency.Backend {
	case "memory":
		return NewInMemoryIdempotencyStore(), nil

	case "redis":
		store, err := NewRedisIdempotencyStore(cfg.Redis)
		if err == nil {
			logger.Info("Using Redis idempotency store")
			return store, nil
		}
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil

	default:
		return nil, fmt.Errorf("unknown idempotency backend: %q", cfg.Idempotency.Backend)
	}
}
