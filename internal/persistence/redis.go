package persistence

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/config"
)

// reservedConns covers producers, health pings and the delayed-job scan that
// share the pool with blocked consumers.
const reservedConns = 4

// Redis wraps the go-redis client backing the job queue.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis. consumers is the number of workers that block
// on the queue; each holds a connection for the whole poll, so the pool is
// sized to leave room for everyone else.
func NewRedis(ctx context.Context, cfg config.RedisConfig, consumers int, logger *zap.Logger) (*Redis, error) {
	logger = logger.Named("redis")
	poolSize := redisPoolSize(cfg.PoolSize, consumers)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("pool_size", poolSize))
	return &Redis{Client: client}, nil
}

func redisPoolSize(configured, consumers int) int {
	size := configured
	if size <= 0 {
		size = 10 * runtime.GOMAXPROCS(0)
	}
	return max(size, consumers+reservedConns)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
