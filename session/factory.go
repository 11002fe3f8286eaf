package session

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates a session store for the configured backend.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg, logger), nil
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
