package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"gpx-simulator/internal/track"
)

func TestEntryCodec(t *testing.T) {
	p := track.Coordinate{Lat: 29.7174, Lon: -95.4018}
	b, err := encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"lat":29.7174,"lon":-95.4018}` {
		t.Errorf("encoded %s", b)
	}
	got, err := decode(b)
	if err != nil || got != p {
		t.Errorf("decode = %v, %v", got, err)
	}
	if _, err := decode([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestValkey_RoundTrip(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set")
	}
	c, err := New(addr, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := "test:" + time.Now().Format(time.RFC3339Nano)
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}
	want := track.Coordinate{Lat: 1.5, Lon: -2.5}
	if err := c.Put(ctx, key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got != want {
		t.Errorf("Get = %v, %v, %v", got, ok, err)
	}
}
