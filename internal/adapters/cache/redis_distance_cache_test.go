package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"school-route-service/internal/ports"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisDistanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisDistanceCache(client, ttl), mr
}

func TestRedisDistanceCacheMiss(t *testing.T) {
	c, _ := newRedisCache(t, time.Hour)

	_, ok, err := c.Get(context.Background(), "48.137100,11.575500", "48.135100,11.582000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("empty cache reported a hit")
	}
}

func TestRedisDistanceCacheRoundTrip(t *testing.T) {
	c, _ := newRedisCache(t, time.Hour)
	ctx := context.Background()

	want := ports.TravelEstimate{DistanceMeters: 4250, DurationSeconds: 510}
	if err := c.Put(ctx, "a", "b", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, "a", "b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("stored estimate not found")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	// The pair key is ordered: the reverse direction is a different hop.
	if _, ok, err := c.Get(ctx, "b", "a"); err != nil || ok {
		t.Errorf("reverse lookup: ok=%v err=%v, want miss", ok, err)
	}
}

func TestRedisDistanceCacheExpiry(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()

	est := ports.TravelEstimate{DistanceMeters: 100, DurationSeconds: 10}
	if err := c.Put(ctx, "a", "b", est); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, err := c.Get(ctx, "a", "b"); err != nil || ok {
		t.Errorf("after expiry: ok=%v err=%v, want miss", ok, err)
	}
}

func TestRedisDistanceCacheMalformedValue(t *testing.T) {
	c, mr := newRedisCache(t, time.Hour)

	if err := mr.Set("dist:a|b", "not-a-pair"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, _, err := c.Get(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error for malformed value")
	}
}
