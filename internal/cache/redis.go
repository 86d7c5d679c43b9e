// Package cache provides the Redis-backed helpers the application uses for
// cross-process coordination, most importantly the once-per-day sweep guard.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// sweepGuardTTL keeps guard keys around long enough to cover the whole day
// they refer to, plus slack for clock skew between trigger sources.
const sweepGuardTTL = 48 * time.Hour

// Cache wraps the Redis client.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("Connected to Redis")

	return &Cache{client: client, log: log}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, log *logger.Logger) *Cache {
	return &Cache{client: client, log: log}
}

// ClaimSweepRun attempts to claim the overdue sweep for the given day.
// It returns true when this caller is the first to run the sweep that day.
// The claim is advisory: on Redis failure it returns true so a cache outage
// never blocks the sweep.
func (c *Cache) ClaimSweepRun(ctx context.Context, day time.Time) bool {
	key := fmt.Sprintf("sweep:ran:%s", day.Format("2006-01-02"))

	claimed, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), sweepGuardTTL).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Sweep guard unavailable, running sweep anyway")
		return true
	}
	return claimed
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
