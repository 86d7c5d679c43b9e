package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/carrotwars/carrotwars/pkg/logger"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, logger.New("debug", "console", "stdout"))
}

func TestClaimSweepRun(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)

	assert.True(t, cache.ClaimSweepRun(ctx, day), "first claim of the day succeeds")
	assert.False(t, cache.ClaimSweepRun(ctx, day), "second claim the same day is rejected")

	nextDay := day.AddDate(0, 0, 1)
	assert.True(t, cache.ClaimSweepRun(ctx, nextDay), "a new day gets a fresh claim")
}

func TestClaimSweepRun_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewWithClient(client, logger.New("debug", "console", "stdout"))
	mr.Close()

	day := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	assert.True(t, cache.ClaimSweepRun(context.Background(), day), "guard is advisory when redis is unavailable")
}
