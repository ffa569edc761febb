package track

import "time"

// jitterDegrees bounds the random offset added to dwell points so that
// consumers never see bit-identical consecutive coordinates.
const jitterDegrees = 1e-8

// Jitter is a source of uniform values in [0, 1). *rand.Rand from math/rand/v2 satisfies it.
type Jitter interface {
	Float64() float64
}

// AppendPause appends one waypoint per minute of dwell at the given location,
// starting one step after start. It returns the extended trajectory and the
// time at the end of the dwell. A non-positive duration appends nothing.
func AppendPause(tr Trajectory, at Coordinate, start time.Time, hours float64, rnd Jitter) (Trajectory, time.Time) {
	n := int(hours * 60)
	if n <= 0 {
		return tr, start
	}
	step := time.Duration(hours * float64(time.Hour) / float64(n))
	cur := start
	for i := 0; i < n; i++ {
		cur = cur.Add(step)
		tr = append(tr, Waypoint{
			Coordinate: Coordinate{
				Lat: at.Lat + jitterDegrees*rnd.Float64(),
				Lon: at.Lon + jitterDegrees*rnd.Float64(),
			},
			Time:  cur,
			Pause: true,
		})
	}
	return tr, cur
}
