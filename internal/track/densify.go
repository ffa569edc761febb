package track

import "math"

const (
	// segments shorter than this are treated as zero length
	degenerateMeters = 1e-6
	// the destination is appended when the last sample misses it by more than this
	arrivalMeters = 0.5
)

// Densify resamples p so that consecutive points are speedMps*intervalS meters
// apart along the path. The first point of p is always first in the output and
// the output ends within arrivalMeters of the last point of p.
//
// Leftover distance is not carried across vertices: a segment shorter than the
// spacing is stepped over and the spacing budget restarts at the next vertex.
// DensifyCarry is the arc-length exact variant.
//
// speedMps and intervalS must be positive.
func Densify(p Polyline, speedMps, intervalS float64) Polyline {
	if len(p) < 2 {
		return p
	}
	spacing := speedMps * intervalS
	out := Polyline{p[0]}
	cur := p[0]
	for i := 0; i < len(p)-1; {
		next := p[i+1]
		seg := Distance(cur, next)
		switch {
		case seg < degenerateMeters:
			i++
			cur = next
		case seg+degenerateMeters >= spacing:
			cur = Interpolate(cur, next, math.Min(spacing/seg, 1))
			out = append(out, cur)
		default:
			i++
			cur = next
		}
	}
	return closeOn(out, p[len(p)-1])
}

// DensifyCarry is Densify with the leftover distance of each segment carried
// into the next, so samples are evenly spaced along the full arc length.
func DensifyCarry(p Polyline, speedMps, intervalS float64) Polyline {
	if len(p) < 2 {
		return p
	}
	spacing := speedMps * intervalS
	out := Polyline{p[0]}
	need := spacing // distance still to walk before the next sample
	for i := 0; i < len(p)-1; i++ {
		a, b := p[i], p[i+1]
		seg := Distance(a, b)
		if seg < degenerateMeters {
			continue
		}
		walked := 0.0
		for seg-walked+degenerateMeters >= need {
			walked += need
			out = append(out, Interpolate(a, b, math.Min(walked/seg, 1)))
			need = spacing
		}
		need -= seg - walked
	}
	return closeOn(out, p[len(p)-1])
}

func closeOn(out Polyline, last Coordinate) Polyline {
	if Distance(out[len(out)-1], last) > arrivalMeters {
		out = append(out, last)
	}
	return out
}
