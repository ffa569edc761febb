package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Waypoints     *prometheus.CounterVec // kind label: motion|pause
	LegsDensified prometheus.Counter
	RunsTotal     *prometheus.CounterVec // mode, outcome

	DensifyDuration  prometheus.Histogram
	UpstreamDuration *prometheus.HistogramVec // op label: geocode|route

	UpstreamRequests *prometheus.CounterVec // op, outcome: ok|error
	CacheLookups     *prometheus.CounterVec // cache, result: hit|miss|error

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	SpeedKmh        prometheus.Gauge
	IntervalSeconds prometheus.Gauge
}

func NewCollector(speedKmh float64, interval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Waypoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpxsim_waypoints_total",
			Help: "Waypoints emitted into trajectories.",
		}, []string{"kind"}),
		LegsDensified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpxsim_legs_densified_total",
			Help: "Route paths resampled by the densifier.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpxsim_runs_total",
			Help: "Trajectory generation runs.",
		}, []string{"mode", "outcome"}),
		DensifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpxsim_densify_duration_seconds",
			Help:    "Duration of a single densify call.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gpxsim_upstream_duration_seconds",
			Help:    "Duration of geocoding and directions requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"op"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpxsim_upstream_requests_total",
			Help: "Geocoding and directions requests by outcome.",
		}, []string{"op", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpxsim_cache_lookups_total",
			Help: "Geocode and route cache lookups by result.",
		}, []string{"cache", "result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpxsim_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpxsim_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpxsim_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpxsim_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedKmh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpxsim_speed_kmh",
			Help: "Configured travel speed.",
		}),
		IntervalSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpxsim_interval_seconds",
			Help: "Configured sample interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Waypoints, c.LegsDensified, c.RunsTotal,
		c.DensifyDuration, c.UpstreamDuration,
		c.UpstreamRequests, c.CacheLookups,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.SpeedKmh, c.IntervalSeconds,
	)

	c.SpeedKmh.Set(speedKmh)
	c.IntervalSeconds.Set(interval.Seconds())

	return c
}

// ObserveUpstream records one geocode or route request.
func (c *Collector) ObserveUpstream(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.UpstreamRequests.WithLabelValues(op, outcome).Inc()
	c.UpstreamDuration.WithLabelValues(op).Observe(d.Seconds())
}

// CacheResult records a cache lookup; result is hit, miss or error.
func (c *Collector) CacheResult(cache, result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the private registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
