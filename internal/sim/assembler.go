package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mmetrics "gpx-simulator/internal/metrics"
	"gpx-simulator/internal/track"
)

var (
	ErrTooFewStops = errors.New("loop needs at least 2 stops")
	ErrInvalidLaps = errors.New("laps must be at least 1")
	ErrUnknownMode = errors.New("unknown mode")
)

type Mode string

const (
	ModeDirect Mode = "plant"      // drive the routed path at constant speed
	ModeJump   Mode = "fly"        // teleport to the destination
	ModeLoop   Mode = "plant_loop" // drive a closed loop through several stops
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDirect, ModeJump, ModeLoop:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want plant, fly or plant_loop)", ErrUnknownMode, s)
}

// Geocoder resolves a free-form address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (track.Coordinate, error)
}

// Router returns the route geometry between two coordinates, one Leg per step.
type Router interface {
	Route(ctx context.Context, origin, destination track.Coordinate) ([]track.Leg, error)
}

type Options struct {
	SpeedKmh     float64
	Interval     time.Duration
	JumpDuration time.Duration
	CarryOver    bool             // use the arc-length exact densifier
	Now          func() time.Time // start time of a run; time.Now when nil

	// ShareStartTime emits the first loop leg's first sample at the start
	// point's timestamp instead of one interval later.
	ShareStartTime bool
}

// Request is one generation run as selected on the command line.
type Request struct {
	Mode           Mode
	Src            string
	Dst            string
	PauseHours     float64 // at the destination (plant, fly)
	Stops          []string
	Laps           int
	StopPauseHours float64 // at every stop (plant_loop)
}

type Assembler struct {
	geocoder Geocoder
	router   Router
	opts     Options
	rnd      track.Jitter
	metrics  *mmetrics.Collector
}

func NewAssembler(geocoder Geocoder, router Router, opts Options, rnd track.Jitter, metrics *mmetrics.Collector) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{
		geocoder: geocoder,
		router:   router,
		opts:     opts,
		rnd:      rnd,
		metrics:  metrics,
	}
}

// Run resolves the request's addresses and assembles the trajectory for its mode.
func (a *Assembler) Run(ctx context.Context, req Request) (tr track.Trajectory, err error) {
	defer func() { a.observeRun(req.Mode, tr, err) }()

	switch req.Mode {
	case ModeLoop:
		return a.Loop(ctx, req.Stops, req.Laps, req.StopPauseHours)
	case ModeDirect, ModeJump:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	origin, err := a.geocode(ctx, req.Src)
	if err != nil {
		return nil, err
	}
	dest, err := a.geocode(ctx, req.Dst)
	if err != nil {
		return nil, err
	}
	if req.Mode == ModeJump {
		return a.Jump(origin, dest, req.PauseHours), nil
	}
	legs, err := a.route(ctx, origin, dest)
	if err != nil {
		return nil, err
	}
	return a.Direct(origin, dest, legs, req.PauseHours)
}

// Direct drives the concatenated legs at constant speed, lands exactly on dest
// one interval after the last sample and then dwells there.
// With fewer than two route points it falls back to origin and dest one second apart.
func (a *Assembler) Direct(origin, dest track.Coordinate, legs []track.Leg, pauseHours float64) (track.Trajectory, error) {
	route, err := track.JoinLegs(legs)
	if err != nil {
		return nil, err
	}
	b := a.newBuilder()
	if len(route) < 2 {
		slog.Warn("route too short, falling back to two points", "points", len(route))
		b.at(origin)
		b.advance(time.Second)
		b.at(dest)
	} else {
		b.move(a.densify(route))
		b.at(dest)
	}
	b.pause(dest, pauseHours)
	return b.tr, nil
}

// Jump emits origin and dest JumpDuration apart, then dwells at dest.
func (a *Assembler) Jump(origin, dest track.Coordinate, pauseHours float64) track.Trajectory {
	b := a.newBuilder()
	b.at(origin)
	b.advance(a.opts.JumpDuration)
	b.at(dest)
	b.pause(dest, pauseHours)
	return b.tr
}

// Loop drives stops[0] -> stops[1] -> ... -> stops[0] laps times. Every stop
// is geocoded once up front; route geometry is fetched per leg and lap.
func (a *Assembler) Loop(ctx context.Context, stops []string, laps int, stopPauseHours float64) (track.Trajectory, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewStops, len(stops))
	}
	if laps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLaps, laps)
	}

	coords := make([]track.Coordinate, len(stops))
	for i, s := range stops {
		c, err := a.geocode(ctx, s)
		if err != nil {
			return nil, err
		}
		coords[i] = c
	}

	b := a.newBuilder()
	b.at(coords[0])
	if !a.opts.ShareStartTime {
		b.advance(b.interval)
	}
	for lap := 0; lap < laps; lap++ {
		for i := range coords {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			j := (i + 1) % len(coords)
			legs, err := a.route(ctx, coords[i], coords[j])
			if err != nil {
				return nil, fmt.Errorf("lap %d, %q -> %q: %w", lap+1, stops[i], stops[j], err)
			}
			route, err := track.JoinLegs(legs)
			if err != nil {
				return nil, fmt.Errorf("lap %d, %q -> %q: %w", lap+1, stops[i], stops[j], err)
			}
			if len(route) >= 2 {
				dense := a.densify(route)
				if len(dense) > 1 {
					dense = dense[1:]
				}
				b.move(dense)
				slog.Debug("leg assembled", "lap", lap+1, "from", stops[i], "to", stops[j], "points", len(dense), "meters", int(route.Length()))
			} else {
				slog.Warn("leg has no usable geometry", "lap", lap+1, "from", stops[i], "to", stops[j])
			}
			if stopPauseHours > 0 {
				b.pause(coords[j], stopPauseHours)
			}
		}
	}
	return b.tr, nil
}

func (a *Assembler) densify(route track.Polyline) track.Polyline {
	start := time.Now()
	speedMps := a.opts.SpeedKmh * 1000 / 3600
	var out track.Polyline
	if a.opts.CarryOver {
		out = track.DensifyCarry(route, speedMps, a.opts.Interval.Seconds())
	} else {
		out = track.Densify(route, speedMps, a.opts.Interval.Seconds())
	}
	if a.metrics != nil {
		a.metrics.LegsDensified.Inc()
		a.metrics.DensifyDuration.Observe(time.Since(start).Seconds())
	}
	return out
}

func (a *Assembler) geocode(ctx context.Context, address string) (track.Coordinate, error) {
	c, err := a.geocoder.Geocode(ctx, address)
	if err != nil {
		return track.Coordinate{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	return c, nil
}

func (a *Assembler) route(ctx context.Context, from, to track.Coordinate) ([]track.Leg, error) {
	legs, err := a.router.Route(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("route %.6f,%.6f -> %.6f,%.6f: %w", from.Lat, from.Lon, to.Lat, to.Lon, err)
	}
	return legs, nil
}

func (a *Assembler) observeRun(mode Mode, tr track.Trajectory, err error) {
	if a.metrics == nil {
		return
	}
	if err != nil {
		a.metrics.RunsTotal.WithLabelValues(string(mode), "error").Inc()
		return
	}
	a.metrics.RunsTotal.WithLabelValues(string(mode), "ok").Inc()
	var moving, paused int
	for _, w := range tr {
		if w.Pause {
			paused++
		} else {
			moving++
		}
	}
	a.metrics.Waypoints.WithLabelValues("motion").Add(float64(moving))
	a.metrics.Waypoints.WithLabelValues("pause").Add(float64(paused))
}
