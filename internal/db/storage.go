package db

import (
	"context"
	"fmt"

	"ton_miner/internal/config"
	"ton_miner/internal/logger"
	"ton_miner/internal/repository"

	redis "github.com/redis/go-redis/v9"
)

// Storage is the state repository picked by STORAGE_DRIVER plus the probes for its backends
type Storage struct {
	Repo   repository.StateRepository
	Checks map[string]func(ctx context.Context) error
	Close  func()
}

// OpenStorage connects the configured driver. rdb may be nil unless the driver is redis.
func OpenStorage(cfg *config.Config, rdb *redis.Client) (*Storage, error) {
	st := &Storage{Checks: map[string]func(ctx context.Context) error{}, Close: func() {}}
	if rdb != nil {
		st.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	switch cfg.StorageDriver {
	case "postgres":
		pool := Connect(cfg.DatabaseURL)
		st.Repo = repository.NewPostgresRepository(pool)
		st.Checks["database"] = pool.Ping
		st.Close = pool.Close
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis storage at %s is not reachable", cfg.RedisAddr)
		}
		st.Repo = repository.NewRedisRepository(rdb)
	case "memory":
		logger.Warn("using in-memory storage")
		st.Repo = repository.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.StorageDriver)
	}
	return st, nil
}
