package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gpx-simulator/internal/cache"
	"gpx-simulator/internal/config"
	"gpx-simulator/internal/db"
	"gpx-simulator/internal/export"
	"gpx-simulator/internal/gmaps"
	"gpx-simulator/internal/logging"
	"gpx-simulator/internal/metrics"
	"gpx-simulator/internal/publisher"
	"gpx-simulator/internal/sim"
	"gpx-simulator/internal/track"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpxsim",
		Short: "Generate timestamped GPS tracks from addresses",
		Long: `gpxsim turns addresses into a timestamped GPS track.

  plant       drive the routed path at constant speed, then dwell
  fly         jump from origin to destination, then dwell
  plant_loop  drive a closed loop through several stops

The track is written as GPX (or GeoJSON) for location-simulation tools.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			// Root context with cancellation on SIGINT/SIGTERM
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, cfg); err != nil {
				slog.Error("run failed", "err", err)
				return err
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	mode, err := sim.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedKmh, cfg.Interval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := gmaps.New(cfg.GoogleMapsAPIKey, cfg.HTTPTimeout, mcol)
	if err != nil {
		return err
	}
	geocoder, closeCaches, err := geocoderChain(ctx, cfg, client, mcol)
	if err != nil {
		return err
	}
	defer closeCaches()

	var router gmaps.Router = client
	if cfg.RouteCacheTTL > 0 {
		router = gmaps.NewMemoRouter(client, cfg.RouteCacheTTL, mcol)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rnd := rand.New(rand.NewPCG(seed, seed))

	asm := sim.NewAssembler(geocoder, router, sim.Options{
		SpeedKmh:       cfg.SpeedKmh,
		Interval:       cfg.Interval,
		JumpDuration:   cfg.JumpDuration,
		CarryOver:      cfg.CarryOver,
		ShareStartTime: cfg.ShareStartTime,
	}, rnd, mcol)

	slog.Info("generating track", "mode", mode, "speed_kmh", cfg.SpeedKmh, "interval", cfg.Interval, "seed", seed)
	tr, err := asm.Run(ctx, sim.Request{
		Mode:           mode,
		Src:            cfg.Src,
		Dst:            cfg.Dst,
		PauseHours:     cfg.PauseHours,
		Stops:          cfg.Stops,
		Laps:           cfg.Laps,
		StopPauseHours: cfg.StopPauseHours,
	})
	if err != nil {
		return err
	}

	name := fmt.Sprintf("gpxsim %s", mode)
	size, err := writeTrack(cfg.OutPath, format, name, tr)
	if err != nil {
		return err
	}
	slog.Info("track written",
		"out", cfg.OutPath,
		"format", format,
		"points", humanize.Comma(int64(len(tr))),
		"length", humanize.SIWithDigits(tr.Path().Length(), 1, "m"),
		"duration", tr.Duration().Round(time.Second),
		"size", humanize.Bytes(uint64(size)),
	)

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			return fmt.Errorf("nats error: %w", err)
		}
		defer pub.Close()
		if err := pub.PublishTrack(publisher.NewTrackMessage(name, string(mode), tr)); err != nil {
			return fmt.Errorf("publish track: %w", err)
		}
	}
	return nil
}

// geocoderChain layers the configured geocode caches in front of the API
// client: valkey, then postgres, then Google.
func geocoderChain(ctx context.Context, cfg *config.Config, client *gmaps.Client, mcol *metrics.Collector) (gmaps.Geocoder, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var g gmaps.Geocoder = client
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db open error: %w", err)
		}
		closers = append(closers, func() { _ = sqlDB.Close() })
		if err := db.Ping(ctx, sqlDB); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("db ping error: %w", err)
		}
		if err := db.EnsureSchema(ctx, sqlDB); err != nil {
			closeAll()
			return nil, nil, err
		}
		g = gmaps.NewCachedGeocoder(g, db.NewGeocodeCache(sqlDB, cfg.GeocodeCacheTTL), "postgres", mcol)
	}
	if cfg.ValkeyAddr != "" {
		vk, err := cache.New(cfg.ValkeyAddr, cfg.GeocodeCacheTTL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("valkey error: %w", err)
		}
		closers = append(closers, vk.Close)
		g = gmaps.NewCachedGeocoder(g, vk, "valkey", mcol)
	}
	return g, closeAll, nil
}

func writeTrack(path string, format export.Format, name string, tr track.Trajectory) (int64, error) {
	if path == "-" {
		cw := &countingWriter{w: os.Stdout}
		err := export.Write(cw, format, name, tr)
		return cw.n, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: f}
	if err := export.Write(cw, format, name, tr); err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, err
	}
	return cw.n, nil
}
