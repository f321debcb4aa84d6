package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"school-route-service/internal/ports"
)

// Shared Redis cache for travel estimates, for deployments where
// several nodes should reuse one warm cache. Entries expire so stale
// road data eventually refreshes.
type RedisDistanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "dist:"

func NewRedisDistanceCache(client *redis.Client, ttl time.Duration) *RedisDistanceCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDistanceCache{client: client, ttl: ttl}
}

func redisKey(origin, destination string) string {
	return redisKeyPrefix + origin + "|" + destination
}

func (c *RedisDistanceCache) Get(ctx context.Context, origin, destination string) (ports.TravelEstimate, bool, error) {
	val, err := c.client.Get(ctx, redisKey(origin, destination)).Result()
	if errors.Is(err, redis.Nil) {
		return ports.TravelEstimate{}, false, nil
	}
	if err != nil {
		return ports.TravelEstimate{}, false, fmt.Errorf("redis distance cache get: %w", err)
	}

	parts := strings.SplitN(val, "|", 2)
	if len(parts) != 2 {
		return ports.TravelEstimate{}, false, fmt.Errorf("redis distance cache: malformed value %q", val)
	}
	meters, merr := strconv.Atoi(parts[0])
	seconds, serr := strconv.Atoi(parts[1])
	if merr != nil || serr != nil {
		return ports.TravelEstimate{}, false, fmt.Errorf("redis distance cache: malformed value %q", val)
	}

	return ports.TravelEstimate{DistanceMeters: meters, DurationSeconds: seconds}, true, nil
}

func (c *RedisDistanceCache) Put(ctx context.Context, origin, destination string, est ports.TravelEstimate) error {
	val := strconv.Itoa(est.DistanceMeters) + "|" + strconv.Itoa(est.DurationSeconds)
	if err := c.client.Set(ctx, redisKey(origin, destination), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis distance cache put: %w", err)
	}
	return nil
}
