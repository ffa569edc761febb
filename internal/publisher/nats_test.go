package publisher

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"gpx-simulator/internal/track"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"plant_loop": "plant_loop",
		" fly ":      "fly",
		"a.b*c>d/e":  "a_b_c_d_e",
		"":           "_",
	}
	for in, want := range tests {
		if got := subjectToken(in); got != want {
			t.Errorf("subjectToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewTrackMessage(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	tr := track.Trajectory{
		{Coordinate: track.Coordinate{Lat: 0, Lon: 0}, Time: t0},
		{Coordinate: track.Coordinate{Lat: 0, Lon: 0.0001}, Time: t0.Add(time.Second)},
		{Coordinate: track.Coordinate{Lat: 0, Lon: 0.0001}, Time: t0.Add(time.Minute + time.Second), Pause: true},
	}
	msg := NewTrackMessage("run", "plant", tr)

	if len(msg.Positions) != 3 {
		t.Fatalf("positions = %d", len(msg.Positions))
	}
	if !msg.Start.Equal(t0) || !msg.End.Equal(tr[2].Time) {
		t.Errorf("start/end = %v / %v", msg.Start, msg.End)
	}
	if math.Abs(msg.LengthM-11.1195) > 1e-3 {
		t.Errorf("length = %v", msg.LengthM)
	}
	if math.Abs(msg.Positions[1].SpeedMps-11.1195) > 1e-3 {
		t.Errorf("speed = %v", msg.Positions[1].SpeedMps)
	}
	for i, p := range msg.Positions {
		if math.Abs(p.Bearing-90) > 1e-6 {
			t.Errorf("position %d bearing = %v, want 90", i, p.Bearing)
		}
	}
	if msg.Positions[2].SpeedMps != 0 || !msg.Positions[2].Pause {
		t.Errorf("pause position = %+v", msg.Positions[2])
	}
}

func TestPublishTrackAndClose(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	p, err := NewNATSPublisher(url, "tracks.test", false, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := track.Trajectory{
		{Coordinate: track.Coordinate{Lat: 0, Lon: 0}, Time: t0},
		{Coordinate: track.Coordinate{Lat: 0, Lon: 0.0001}, Time: t0.Add(time.Second)},
	}
	if err := p.PublishTrack(NewTrackMessage("t", "plant", tr)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	p.Close()
	// draining a closed connection fails and is logged, not dropped
	p.Close()
	if !strings.Contains(logs.String(), "nats drain") {
		t.Errorf("drain error not logged:\n%s", logs.String())
	}
}
