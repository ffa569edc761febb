package track

import (
	"time"

	"github.com/paulmach/orb"
)

type Coordinate struct {
	Lat float64 // decimal degrees
	Lon float64 // decimal degrees
}

// Point returns the coordinate in orb's (lon, lat) order.
func (c Coordinate) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// FromPoint is the inverse of Coordinate.Point.
func FromPoint(p orb.Point) Coordinate { return Coordinate{Lat: p.Lat(), Lon: p.Lon()} }

type Polyline []Coordinate

func (p Polyline) LineString() orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, c := range p {
		ls[i] = c.Point()
	}
	return ls
}

// Length is the summed haversine length of the path in meters.
func (p Polyline) Length() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

type Waypoint struct {
	Coordinate
	Time  time.Time
	Pause bool // emitted while dwelling at a stop
}

type Trajectory []Waypoint

// Path drops the timestamps.
func (tr Trajectory) Path() Polyline {
	p := make(Polyline, len(tr))
	for i, w := range tr {
		p[i] = w.Coordinate
	}
	return p
}

// Duration is the time between the first and last waypoint.
func (tr Trajectory) Duration() time.Duration {
	if len(tr) < 2 {
		return 0
	}
	return tr[len(tr)-1].Time.Sub(tr[0].Time)
}

// Leg is one hop of route geometry as returned by a directions service.
type Leg struct {
	Polyline string // encoded polyline, precision 5
}

func (l Leg) Decode() (Polyline, error) { return DecodePolyline(l.Polyline) }
