//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"gpx-simulator/internal/track"
)

func openTestDB(t *testing.T) *GeocodeCache {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	sqlDB, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	ctx := context.Background()
	if err := Ping(ctx, sqlDB); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := EnsureSchema(ctx, sqlDB); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := sqlDB.ExecContext(ctx, `DELETE FROM geocode_cache WHERE address LIKE 'test:%'`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	return NewGeocodeCache(sqlDB, time.Hour)
}

func TestGeocodeCache_RoundTrip(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "test:missing"); err != nil || ok {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}
	want := track.Coordinate{Lat: 29.7174, Lon: -95.4018}
	if err := c.Put(ctx, "test:home", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, "test:home")
	if err != nil || !ok || got != want {
		t.Fatalf("get = %v, %v, %v", got, ok, err)
	}

	moved := track.Coordinate{Lat: 29.72, Lon: -95.41}
	if err := c.Put(ctx, "test:home", moved); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got, _, _ := c.Get(ctx, "test:home"); got != moved {
		t.Errorf("after upsert got %v", got)
	}
}
