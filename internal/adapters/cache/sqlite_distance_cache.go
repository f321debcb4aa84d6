package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"school-route-service/internal/ports"
)

// SQLite-backed cache for origin->destination travel estimates.
// Keys are coordinate strings produced by the mapping adapter; the
// caller is responsible for rendering them consistently.
type SqliteDistanceCache struct {
	DB *sql.DB
}

func NewSqliteDistanceCache(db *sql.DB) *SqliteDistanceCache {
	return &SqliteDistanceCache{DB: db}
}

func (c *SqliteDistanceCache) Get(ctx context.Context, origin, destination string) (ports.TravelEstimate, bool, error) {
	if c.DB == nil {
		return ports.TravelEstimate{}, false, errors.New("distance cache: db is nil")
	}

	q := `
	SELECT distance_meters, duration_seconds
	FROM distance_cache
	WHERE origin = ? AND destination = ?;
	`

	var est ports.TravelEstimate
	err := c.DB.QueryRowContext(ctx, q, origin, destination).Scan(&est.DistanceMeters, &est.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.TravelEstimate{}, false, nil
	}
	if err != nil {
		return ports.TravelEstimate{}, false, fmt.Errorf("get distance cache: %w", err)
	}
	return est, true, nil
}

func (c *SqliteDistanceCache) Put(ctx context.Context, origin, destination string, est ports.TravelEstimate) error {
	if c.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	q := `
	INSERT INTO distance_cache (origin, destination, distance_meters, duration_seconds)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (origin, destination) DO UPDATE SET
		distance_meters = excluded.distance_meters,
		duration_seconds = excluded.duration_seconds;
	`

	if _, err := c.DB.ExecContext(ctx, q, origin, destination, est.DistanceMeters, est.DurationSeconds); err != nil {
		return fmt.Errorf("put distance cache: %w", err)
	}
	return nil
}
