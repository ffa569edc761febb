package gmaps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mmetrics "gpx-simulator/internal/metrics"
	"gpx-simulator/internal/track"

	"googlemaps.github.io/maps"
)

var ErrNoResults = errors.New("no results")

// Client resolves addresses and fetches driving directions from the Google Maps web services.
type Client struct {
	c       *maps.Client
	timeout time.Duration
	metrics *mmetrics.Collector
}

// New builds a client for apiKey. Every request is bounded by timeout.
// Extra options (for example maps.WithBaseURL in tests) are passed through.
func New(apiKey string, timeout time.Duration, metrics *mmetrics.Collector, opts ...maps.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("empty API key")
	}
	opts = append([]maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}, opts...)
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Client{c: c, timeout: timeout, metrics: metrics}, nil
}

// Geocode returns the location of the first geocoding result for address.
func (c *Client) Geocode(ctx context.Context, address string) (track.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.c.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err == nil && len(res) == 0 {
		err = ErrNoResults
	}
	c.metrics.ObserveUpstream("geocode", time.Since(start), err)
	if err != nil {
		return track.Coordinate{}, err
	}
	loc := res[0].Geometry.Location
	return track.Coordinate{Lat: loc.Lat, Lon: loc.Lng}, nil
}

// Route returns one Leg per step of the first leg of the first route,
// departing now.
func (c *Client) Route(ctx context.Context, origin, destination track.Coordinate) ([]track.Leg, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	routes, _, err := c.c.Directions(ctx, &maps.DirectionsRequest{
		Origin:        latLng(origin),
		Destination:   latLng(destination),
		DepartureTime: "now",
	})
	if err == nil && (len(routes) == 0 || len(routes[0].Legs) == 0) {
		err = ErrNoResults
	}
	c.metrics.ObserveUpstream("route", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	steps := routes[0].Legs[0].Steps
	legs := make([]track.Leg, 0, len(steps))
	for _, s := range steps {
		legs = append(legs, track.Leg{Polyline: s.Polyline.Points})
	}
	return legs, nil
}

func latLng(c track.Coordinate) string { return fmt.Sprintf("%f,%f", c.Lat, c.Lon) }
