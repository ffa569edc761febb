// Package export serializes trajectories into track exchange formats.
package export

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"gpx-simulator/internal/track"

	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
)

type Format string

const (
	FormatGPX     Format = "gpx"
	FormatGeoJSON Format = "geojson"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatGPX, FormatGeoJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want gpx or geojson)", s)
}

// Write serializes tr to w in the given format.
func Write(w io.Writer, f Format, name string, tr track.Trajectory) error {
	var (
		b   []byte
		err error
	)
	switch f {
	case FormatGPX:
		b, err = GPX(name, tr)
	case FormatGeoJSON:
		b, err = GeoJSON(name, tr)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// GPX renders the trajectory as GPX 1.1 waypoints, which is what device
// simulators replay.
func GPX(name string, tr track.Trajectory) ([]byte, error) {
	g := &gpx.GPX{
		Version: "1.1",
		Creator: "gpx-simulator",
		Name:    name,
	}
	g.Waypoints = make([]gpx.GPXPoint, 0, len(tr))
	for _, w := range tr {
		g.Waypoints = append(g.Waypoints, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  w.Lat,
				Longitude: w.Lon,
			},
			Timestamp: w.Time.UTC(),
		})
	}
	b, err := g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("gpx: %w", err)
	}
	return subsecondTimes(b, tr)
}

var timeElem = regexp.MustCompile(`<time>[^<]*</time>`)

// subsecondTimes rewrites the <time> elements gpxgo renders at whole seconds
// with the full xsd:dateTime of each waypoint, in document order.
func subsecondTimes(b []byte, tr track.Trajectory) ([]byte, error) {
	if n := len(timeElem.FindAllIndex(b, -1)); n != len(tr) {
		return nil, fmt.Errorf("gpx: %d time elements for %d waypoints", n, len(tr))
	}
	i := 0
	return timeElem.ReplaceAllFunc(b, func([]byte) []byte {
		ts := tr[i].Time.UTC().Format(time.RFC3339Nano)
		i++
		return []byte("<time>" + ts + "</time>")
	}), nil
}

// GeoJSON renders the path as a LineString feature followed by one Point
// feature per waypoint carrying its time.
func GeoJSON(name string, tr track.Trajectory) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	path := geojson.NewFeature(tr.Path().LineString())
	path.Properties["name"] = name
	path.Properties["points"] = len(tr)
	if len(tr) > 0 {
		path.Properties["start"] = tr[0].Time.UTC().Format(time.RFC3339Nano)
		path.Properties["end"] = tr[len(tr)-1].Time.UTC().Format(time.RFC3339Nano)
	}
	fc.Append(path)

	for _, w := range tr {
		f := geojson.NewFeature(w.Point())
		f.Properties["time"] = w.Time.UTC().Format(time.RFC3339Nano)
		f.Properties["pause"] = w.Pause
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}
	return b, nil
}
