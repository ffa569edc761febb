package track

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"
)

var ErrBadPolyline = errors.New("bad encoded polyline")

// DecodePolyline decodes a Google encoded polyline (precision 5).
// An empty string decodes to an empty Polyline.
func DecodePolyline(s string) (Polyline, error) {
	if s == "" {
		return nil, nil
	}
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPolyline, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadPolyline, len(rest))
	}
	out := make(Polyline, 0, len(coords))
	for _, c := range coords {
		out = append(out, Coordinate{Lat: c[0], Lon: c[1]})
	}
	return out, nil
}

func EncodePolyline(p Polyline) string {
	coords := make([][]float64, len(p))
	for i, c := range p {
		coords[i] = []float64{c.Lat, c.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// JoinLegs decodes legs into one continuous path. Legs that decode empty are
// skipped and every later leg loses its first point, which repeats the
// previous leg's last one.
func JoinLegs(legs []Leg) (Polyline, error) {
	var out Polyline
	for i, l := range legs {
		pts, err := l.Decode()
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		if len(pts) == 0 {
			continue
		}
		if len(out) > 0 {
			pts = pts[1:]
		}
		out = append(out, pts...)
	}
	return out, nil
}
