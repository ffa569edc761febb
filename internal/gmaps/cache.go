package gmaps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mmetrics "gpx-simulator/internal/metrics"
	"gpx-simulator/internal/track"

	"github.com/jellydator/ttlcache/v3"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (track.Coordinate, error)
}

type Router interface {
	Route(ctx context.Context, origin, destination track.Coordinate) ([]track.Leg, error)
}

// GeocodeCache stores resolved addresses across runs.
type GeocodeCache interface {
	Get(ctx context.Context, address string) (track.Coordinate, bool, error)
	Put(ctx context.Context, address string, c track.Coordinate) error
}

// CachedGeocoder consults cache before next and stores what next resolves.
// Cache failures are logged and never fail a lookup.
type CachedGeocoder struct {
	next    Geocoder
	cache   GeocodeCache
	name    string // metrics label
	metrics *mmetrics.Collector
}

func NewCachedGeocoder(next Geocoder, cache GeocodeCache, name string, metrics *mmetrics.Collector) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, name: name, metrics: metrics}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (track.Coordinate, error) {
	key := NormalizeAddress(address)
	c, ok, err := g.cache.Get(ctx, key)
	switch {
	case err != nil:
		g.metrics.CacheResult(g.name, "error")
		slog.Warn("geocode cache get failed", "cache", g.name, "address", address, "err", err)
	case ok:
		g.metrics.CacheResult(g.name, "hit")
		slog.Debug("geocode cache hit", "cache", g.name, "address", address)
		return c, nil
	default:
		g.metrics.CacheResult(g.name, "miss")
	}

	c, err = g.next.Geocode(ctx, address)
	if err != nil {
		return track.Coordinate{}, err
	}
	if err := g.cache.Put(ctx, key, c); err != nil {
		slog.Warn("geocode cache put failed", "cache", g.name, "address", address, "err", err)
	}
	return c, nil
}

// NormalizeAddress folds case and whitespace so trivially different spellings share a cache entry.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// MemoRouter keeps routes in memory for ttl, keyed by origin and destination.
// Laps of a loop repeat the same pairs, so only the first lap hits the network.
type MemoRouter struct {
	next    Router
	cache   *ttlcache.Cache[string, []track.Leg]
	metrics *mmetrics.Collector
}

func NewMemoRouter(next Router, ttl time.Duration, metrics *mmetrics.Collector) *MemoRouter {
	return &MemoRouter{
		next: next,
		cache: ttlcache.New[string, []track.Leg](
			ttlcache.WithTTL[string, []track.Leg](ttl),
			ttlcache.WithDisableTouchOnHit[string, []track.Leg](),
		),
		metrics: metrics,
	}
}

func (r *MemoRouter) Route(ctx context.Context, origin, destination track.Coordinate) ([]track.Leg, error) {
	key := fmt.Sprintf("%.6f,%.6f>%.6f,%.6f", origin.Lat, origin.Lon, destination.Lat, destination.Lon)
	if item := r.cache.Get(key); item != nil {
		r.metrics.CacheResult("route", "hit")
		return item.Value(), nil
	}
	r.metrics.CacheResult("route", "miss")
	legs, err := r.next.Route(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, legs, ttlcache.DefaultTTL)
	return legs, nil
}

// Len reports how many routes are memoized.
func (r *MemoRouter) Len() int { return r.cache.Len() }
