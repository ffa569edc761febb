package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gpx-simulator/internal/track"

	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "gpxsim:geocode:"

// Valkey is a geocode cache backed by Valkey (Redis-compatible).
type Valkey struct {
	client valkey.Client
	ttl    time.Duration
}

// New connects to addr. Entries expire after ttl; zero keeps them forever.
func New(addr string, ttl time.Duration) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Valkey{client: client, ttl: ttl}, nil
}

func (c *Valkey) Get(ctx context.Context, address string) (track.Coordinate, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+address).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return track.Coordinate{}, false, nil
	}
	if err != nil {
		return track.Coordinate{}, false, err
	}
	p, err := decode(b)
	if err != nil {
		return track.Coordinate{}, false, err
	}
	return p, true, nil
}

func (c *Valkey) Put(ctx context.Context, address string, p track.Coordinate) error {
	b, err := encode(p)
	if err != nil {
		return err
	}
	if c.ttl > 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+address).Value(string(b)).Ex(c.ttl).Build()).Error()
	}
	return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+address).Value(string(b)).Build()).Error()
}

// Close releases the client.
func (c *Valkey) Close() {
	c.client.Close()
}

type entry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func encode(p track.Coordinate) ([]byte, error) {
	return json.Marshal(entry{Lat: p.Lat, Lon: p.Lon})
}

func decode(b []byte) (track.Coordinate, error) {
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return track.Coordinate{}, fmt.Errorf("decode cached coordinate: %w", err)
	}
	return track.Coordinate{Lat: e.Lat, Lon: e.Lon}, nil
}
