package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection with PING
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// Coordination bundles the stores that may be backed by Redis
type Coordination struct {
	Idempotency shared.IdempotencyStore
	SweepLock   shared.Lock
}

// NewCoordination picks Redis or in-memory backends per setting.
// A nil client forces in-memory backends and logs a warning if Redis was requested.
func NewCoordination(client redis.UniversalClient, notification config.NotificationConfig, sweep config.SweepConfig, logger *zap.Logger) *Coordination {
	c := &Coordination{}

	if notification.UseRedis && client != nil {
		c.Idempotency = NewRedisIdempotencyStore(client, DefaultIdempotencyPrefix)
		logger.Info("Using Redis idempotency store")
	} else {
		if notification.UseRedis {
			logger.Warn("Redis unavailable, notification dedup falls back to process memory")
		}
		c.Idempotency = NewInMemoryIdempotencyStore()
	}

	if sweep.UseRedisLock && client != nil {
		c.SweepLock = NewRedisSweepLock(client, DefaultSweepLockKey)
		logger.Info("Using Redis sweep lock")
	} else {
		if sweep.UseRedisLock {
			logger.Warn("Redis unavailable, sweep lock is process-local")
		}
		c.SweepLock = NewInMemorySweepLock()
	}

	return c
}

// Close releases resources owned by the bundle
func (c *Coordination) Close() error {
	return c.Idempotency.Close()
}
