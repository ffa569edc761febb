package gmaps

import (
	"context"
	"errors"
	"testing"
	"time"

	"gpx-simulator/internal/track"
)

type countingGeocoder struct {
	calls int
	c     track.Coordinate
	err   error
}

func (g *countingGeocoder) Geocode(context.Context, string) (track.Coordinate, error) {
	g.calls++
	return g.c, g.err
}

type mapCache struct {
	m      map[string]track.Coordinate
	getErr error
}

func (c *mapCache) Get(_ context.Context, address string) (track.Coordinate, bool, error) {
	if c.getErr != nil {
		return track.Coordinate{}, false, c.getErr
	}
	v, ok := c.m[address]
	return v, ok, nil
}

func (c *mapCache) Put(_ context.Context, address string, v track.Coordinate) error {
	c.m[address] = v
	return nil
}

func TestCachedGeocoder_HitsUpstreamOnce(t *testing.T) {
	up := &countingGeocoder{c: track.Coordinate{Lat: 1, Lon: 2}}
	g := NewCachedGeocoder(up, &mapCache{m: map[string]track.Coordinate{}}, "test", nil)

	for _, addr := range []string{"2410 Shakespeare St", "2410  shakespeare st ", "2410 SHAKESPEARE ST"} {
		got, err := g.Geocode(context.Background(), addr)
		if err != nil {
			t.Fatalf("Geocode(%q): %v", addr, err)
		}
		if got != up.c {
			t.Errorf("Geocode(%q) = %v", addr, got)
		}
	}
	if up.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", up.calls)
	}
}

func TestCachedGeocoder_CacheErrorFallsThrough(t *testing.T) {
	up := &countingGeocoder{c: track.Coordinate{Lat: 1, Lon: 2}}
	g := NewCachedGeocoder(up, &mapCache{m: map[string]track.Coordinate{}, getErr: errors.New("down")}, "test", nil)
	if _, err := g.Geocode(context.Background(), "a"); err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upstream calls = %d", up.calls)
	}
}

func TestCachedGeocoder_UpstreamErrorNotCached(t *testing.T) {
	up := &countingGeocoder{err: ErrNoResults}
	cache := &mapCache{m: map[string]track.Coordinate{}}
	g := NewCachedGeocoder(up, cache, "test", nil)
	if _, err := g.Geocode(context.Background(), "a"); !errors.Is(err, ErrNoResults) {
		t.Errorf("err = %v", err)
	}
	if len(cache.m) != 0 {
		t.Errorf("cached a failed lookup: %v", cache.m)
	}
}

type countingRouter struct{ calls int }

func (r *countingRouter) Route(_ context.Context, o, d track.Coordinate) ([]track.Leg, error) {
	r.calls++
	return []track.Leg{{Polyline: track.EncodePolyline(track.Polyline{o, d})}}, nil
}

func TestMemoRouter(t *testing.T) {
	up := &countingRouter{}
	r := NewMemoRouter(up, time.Minute, nil)
	a := track.Coordinate{Lat: 1, Lon: 1}
	b := track.Coordinate{Lat: 2, Lon: 2}

	for lap := 0; lap < 3; lap++ {
		if _, err := r.Route(context.Background(), a, b); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Route(context.Background(), b, a); err != nil {
			t.Fatal(err)
		}
	}
	if up.calls != 2 {
		t.Errorf("upstream calls = %d, want 2", up.calls)
	}
	if r.Len() != 2 {
		t.Errorf("memoized = %d", r.Len())
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("  3915 Kirby  Dr,\tHouston "); got != "3915 kirby dr, houston" {
		t.Errorf("got %q", got)
	}
}
