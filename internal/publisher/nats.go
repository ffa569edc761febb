package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gpx-simulator/internal/track"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	nc          *nats.Conn
	subject     string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subject string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gpx-simulator"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			slog.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Debug("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: subject, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			slog.Debug("nats drain", "err", err)
		}
		p.nc.Close()
	}
}

type PositionMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Bearing   float64   `json:"bearing"`
	SpeedMps  float64   `json:"speedMps"`
	Pause     bool      `json:"pause,omitempty"`
}

// TrackMessage carries one finished trajectory.
type TrackMessage struct {
	Name      string            `json:"name"`
	Mode      string            `json:"mode"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	LengthM   float64           `json:"lengthMeters"`
	Positions []PositionMessage `json:"positions"`
}

// NewTrackMessage converts tr, estimating bearing and speed from each point's predecessor.
func NewTrackMessage(name, mode string, tr track.Trajectory) TrackMessage {
	msg := TrackMessage{
		Name:      name,
		Mode:      mode,
		Positions: make([]PositionMessage, len(tr)),
	}
	if len(tr) > 0 {
		msg.Start = tr[0].Time
		msg.End = tr[len(tr)-1].Time
	}
	var bearing float64
	for i, w := range tr {
		pm := PositionMessage{Timestamp: w.Time, Lat: w.Lat, Lon: w.Lon, Pause: w.Pause}
		if i > 0 {
			prev := tr[i-1]
			d := track.Distance(prev.Coordinate, w.Coordinate)
			msg.LengthM += d
			// keep the last heading while stationary
			if d > 0.5 {
				bearing = track.Bearing(prev.Coordinate, w.Coordinate)
			}
			if dt := w.Time.Sub(prev.Time).Seconds(); dt > 0 {
				pm.SpeedMps = d / dt
			}
		}
		pm.Bearing = bearing
		msg.Positions[i] = pm
	}
	if len(tr) > 1 {
		msg.Positions[0].Bearing = msg.Positions[1].Bearing
	}
	return msg
}

// PublishTrack publishes msg on <subject>.<mode>.
func (p *NATSPublisher) PublishTrack(msg TrackMessage) error {
	subject := fmt.Sprintf("%s.%s", p.subject, subjectToken(msg.Mode))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		slog.Info("nats publish", "subject", subject, "bytes", len(b))
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if err == nil {
		err = p.nc.Flush()
	}
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
