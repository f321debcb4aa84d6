package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"school-route-service/internal/domain"
)

// SQLite-backed cache of resolved addresses.
type SqliteGeocodeCache struct {
	DB *sql.DB
}

func NewSqliteGeocodeCache(db *sql.DB) *SqliteGeocodeCache {
	return &SqliteGeocodeCache{DB: db}
}

func (c *SqliteGeocodeCache) Get(ctx context.Context, address string) (domain.Point, bool, error) {
	if c.DB == nil {
		return domain.Point{}, false, errors.New("geocode cache: db is nil")
	}

	q := `
	SELECT lat, lng
	FROM geocode_cache
	WHERE address = ?;
	`

	var p domain.Point
	err := c.DB.QueryRowContext(ctx, q, address).Scan(&p.Lat, &p.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Point{}, false, nil
	}
	if err != nil {
		return domain.Point{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return p, true, nil
}

func (c *SqliteGeocodeCache) Put(ctx context.Context, address string, p domain.Point) error {
	if c.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	q := `
	INSERT INTO geocode_cache (address, lat, lng)
	VALUES (?, ?, ?)
	ON CONFLICT (address) DO UPDATE SET
		lat = excluded.lat,
		lng = excluded.lng;
	`

	if _, err := c.DB.ExecContext(ctx, q, address, p.Lat, p.Lng); err != nil {
		return fmt.Errorf("put geocode cache: %w", err)
	}
	return nil
}

// InitCacheSchema creates the cache tables for a fresh SQLite file.
func InitCacheSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init cache schema: db is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS distance_cache (
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			distance_meters INTEGER NOT NULL,
			duration_seconds INTEGER NOT NULL,
			PRIMARY KEY (origin, destination)
		);`,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lat REAL NOT NULL,
			lng REAL NOT NULL
		);`,
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init cache schema: statement #%d: %w", i+1, err)
		}
	}
	return nil
}
