package sim

import (
	"time"

	"gpx-simulator/internal/track"
)

// builder folds legs into a trajectory, carrying only the clock forward.
type builder struct {
	tr       track.Trajectory
	now      time.Time
	interval time.Duration
	rnd      track.Jitter
}

func (a *Assembler) newBuilder() *builder {
	return &builder{
		now:      a.opts.Now(),
		interval: a.opts.Interval,
		rnd:      a.rnd,
	}
}

// at emits c at the current time without advancing the clock.
func (b *builder) at(c track.Coordinate) {
	b.tr = append(b.tr, track.Waypoint{Coordinate: c, Time: b.now})
}

func (b *builder) advance(d time.Duration) { b.now = b.now.Add(d) }

// move emits every point of p one interval apart; the clock ends one
// interval after the last point.
func (b *builder) move(p track.Polyline) {
	for _, c := range p {
		b.at(c)
		b.advance(b.interval)
	}
}

func (b *builder) pause(at track.Coordinate, hours float64) {
	b.tr, b.now = track.AppendPause(b.tr, at, b.now, hours, b.rnd)
}
