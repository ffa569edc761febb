package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gpx-simulator/internal/track"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
  address     text PRIMARY KEY,
  lat         double precision NOT NULL,
  lon         double precision NOT NULL,
  resolved_at timestamptz NOT NULL DEFAULT now()
)`

// EnsureSchema creates the geocode cache table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create geocode_cache: %w", err)
	}
	return nil
}

// GeocodeCache keeps resolved addresses in postgres. Entries older than
// maxAge are ignored; zero keeps them forever.
type GeocodeCache struct {
	db     *sql.DB
	maxAge time.Duration
}

func NewGeocodeCache(db *sql.DB, maxAge time.Duration) *GeocodeCache {
	return &GeocodeCache{db: db, maxAge: maxAge}
}

func (c *GeocodeCache) Get(ctx context.Context, address string) (track.Coordinate, bool, error) {
	q := `SELECT lat, lon, resolved_at FROM geocode_cache WHERE address = $1`
	var (
		p  track.Coordinate
		at time.Time
	)
	err := c.db.QueryRowContext(ctx, q, address).Scan(&p.Lat, &p.Lon, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return track.Coordinate{}, false, nil
	}
	if err != nil {
		return track.Coordinate{}, false, fmt.Errorf("query geocode_cache: %w", err)
	}
	if c.maxAge > 0 && time.Since(at) > c.maxAge {
		return track.Coordinate{}, false, nil
	}
	return p, true, nil
}

func (c *GeocodeCache) Put(ctx context.Context, address string, p track.Coordinate) error {
	q := `
INSERT INTO geocode_cache (address, lat, lon, resolved_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (address) DO UPDATE
  SET lat = EXCLUDED.lat, lon = EXCLUDED.lon, resolved_at = EXCLUDED.resolved_at`
	if _, err := c.db.ExecContext(ctx, q, address, p.Lat, p.Lon); err != nil {
		return fmt.Errorf("upsert geocode_cache: %w", err)
	}
	return nil
}
