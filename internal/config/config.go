package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultStops is the loop driven in plant_loop mode when none is configured.
var DefaultStops = []string{
	"2410 Shakespeare St, Houston, TX 77030",
	"2301 University Blvd, Houston, TX 77005",
	"6010 Greenbriar Dr, Houston, TX 77030",
	"2729 Pemberton Dr, Houston, TX 77005",
	"2740 University Blvd, Houston, TX 77005",
}

const (
	defaultMode     = "fly"
	defaultSrc      = "2410 Shakespeare St, Houston, TX 77030"
	defaultDst      = "3915 Kirby Dr, Houston, TX 77098"
	defaultSpeedKmh = 30.0
	defaultInterval = 0.5 // seconds
	defaultPause    = 1.0 // hours
)

type Config struct {
	Mode           string
	Src            string
	Dst            string
	SpeedKmh       float64
	Interval       time.Duration
	PauseHours     float64
	StopPauseHours float64
	Laps           int
	Stops          []string
	JumpDuration   time.Duration
	CarryOver      bool
	ShareStartTime bool
	OutPath        string
	Format         string
	Seed           uint64

	GoogleMapsAPIKey string
	HTTPTimeout      time.Duration

	DatabaseURL     string
	ValkeyAddr      string
	GeocodeCacheTTL time.Duration
	RouteCacheTTL   time.Duration

	NATSURL         string
	NATSSubject     string
	LogNATSSubjects bool

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// RegisterFlags declares the command line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./gpxsim.yaml or $HOME/.config/gpxsim/gpxsim.yaml)")
	fs.String("mode", defaultMode, "movement mode: plant, fly, plant_loop")
	fs.String("src", defaultSrc, "starting location")
	fs.String("dst", defaultDst, "destination location")
	fs.Float64("speed", defaultSpeedKmh, "travel speed in km/h")
	fs.Float64("interval", defaultInterval, "seconds between samples")
	fs.Float64("pause", defaultPause, "hours to dwell at the destination (plant, fly)")
	fs.Float64("stop-pause", 0, "hours to dwell at every stop (plant_loop)")
	fs.Int("laps", 1, "number of loops (plant_loop)")
	fs.StringSlice("stop", nil, "loop stop address, repeat for each stop (plant_loop)")
	fs.Float64("jump-seconds", 1, "seconds between origin and destination (fly)")
	fs.Bool("carry-over", false, "carry leftover distance across route vertices when resampling")
	fs.Bool("share-start-time", false, "start the first loop leg at the start point's timestamp (plant_loop)")
	fs.StringP("out", "o", "route.gpx", "output file, - for stdout")
	fs.String("format", "gpx", "output format: gpx, geojson")
	fs.Uint64("seed", 0, "seed for dwell jitter, 0 picks one from the clock")
	fs.String("log-level", "info", "debug, info, warn or error")
}

// Load reads .env, the optional config file, the environment and fs (in
// increasing precedence) into a validated Config.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("mode", defaultMode)
	v.SetDefault("src", defaultSrc)
	v.SetDefault("dst", defaultDst)
	v.SetDefault("speed", defaultSpeedKmh)
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("pause", defaultPause)
	v.SetDefault("stop-pause", 0.0)
	v.SetDefault("laps", 1)
	v.SetDefault("stops", DefaultStops)
	v.SetDefault("jump-seconds", 1.0)
	v.SetDefault("carry-over", false)
	v.SetDefault("share-start-time", false)
	v.SetDefault("out", "route.gpx")
	v.SetDefault("format", "gpx")
	v.SetDefault("seed", 0)
	v.SetDefault("http-timeout", "20s")
	v.SetDefault("geocode-cache-ttl", "720h")
	v.SetDefault("route-cache-ttl", "0s")
	v.SetDefault("nats-subject", "tracks.generated")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")

	// GPXSIM_STOP_PAUSE -> stop-pause
	v.SetEnvPrefix("GPXSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// Unprefixed names shared with other tooling.
	_ = v.BindEnv("google-maps-api-key", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("database-url", "DATABASE_URL", "PG_DSN")
	_ = v.BindEnv("valkey-addr", "VALKEY_ADDR")
	_ = v.BindEnv("nats-url", "NATS_URL")
	_ = v.BindEnv("nats-subject", "NATS_SUBJECT")
	_ = v.BindEnv("log-nats-subjects", "LOG_NATS_SUBJECTS")
	_ = v.BindEnv("metrics-addr", "METRICS_ADDR")
	_ = v.BindEnv("log-level", "GPXSIM_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log-format", "GPXSIM_LOG_FORMAT", "LOG_FORMAT")

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
		if f := fs.Lookup("stop"); f != nil {
			if err := v.BindPFlag("stops", f); err != nil {
				return nil, fmt.Errorf("bind flags: %w", err)
			}
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gpxsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/gpxsim")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Mode:             strings.TrimSpace(v.GetString("mode")),
		Src:              v.GetString("src"),
		Dst:              v.GetString("dst"),
		SpeedKmh:         v.GetFloat64("speed"),
		PauseHours:       v.GetFloat64("pause"),
		StopPauseHours:   v.GetFloat64("stop-pause"),
		Laps:             v.GetInt("laps"),
		Stops:            v.GetStringSlice("stops"),
		CarryOver:        v.GetBool("carry-over"),
		ShareStartTime:   v.GetBool("share-start-time"),
		OutPath:          v.GetString("out"),
		Format:           strings.ToLower(v.GetString("format")),
		Seed:             v.GetUint64("seed"),
		GoogleMapsAPIKey: v.GetString("google-maps-api-key"),
		HTTPTimeout:      v.GetDuration("http-timeout"),
		ValkeyAddr:       v.GetString("valkey-addr"),
		GeocodeCacheTTL:  v.GetDuration("geocode-cache-ttl"),
		RouteCacheTTL:    v.GetDuration("route-cache-ttl"),
		NATSURL:          v.GetString("nats-url"),
		NATSSubject:      v.GetString("nats-subject"),
		LogNATSSubjects:  v.GetBool("log-nats-subjects"),
		MetricsAddr:      v.GetString("metrics-addr"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
	}

	interval := v.GetFloat64("interval")
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %v (must be > 0 seconds)", interval)
	}
	cfg.Interval = time.Duration(interval * float64(time.Second))

	jump := v.GetFloat64("jump-seconds")
	if jump < 0 {
		return nil, fmt.Errorf("invalid jump-seconds: %v", jump)
	}
	cfg.JumpDuration = time.Duration(jump * float64(time.Second))

	cfg.DatabaseURL = databaseURL(v.GetString("database-url"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges; it does not touch the network.
func (c *Config) Validate() error {
	switch c.Mode {
	case "plant", "fly", "plant_loop":
	default:
		return fmt.Errorf("invalid mode: %q (want plant, fly or plant_loop)", c.Mode)
	}
	if c.SpeedKmh <= 0 {
		return fmt.Errorf("invalid speed: %v (must be > 0 km/h)", c.SpeedKmh)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval: %v", c.Interval)
	}
	if c.PauseHours < 0 {
		return fmt.Errorf("invalid pause: %v", c.PauseHours)
	}
	if c.StopPauseHours < 0 {
		return fmt.Errorf("invalid stop-pause: %v", c.StopPauseHours)
	}
	if c.Mode == "plant_loop" && c.Laps < 1 {
		return fmt.Errorf("invalid laps: %d (must be >= 1)", c.Laps)
	}
	switch c.Format {
	case "gpx", "geojson":
	default:
		return fmt.Errorf("invalid format: %q", c.Format)
	}
	if strings.TrimSpace(c.GoogleMapsAPIKey) == "" {
		return errors.New("GOOGLE_MAPS_API_KEY not set; add GOOGLE_MAPS_API_KEY=your_api_key to the environment or .env")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid http-timeout: %v", c.HTTPTimeout)
	}
	return nil
}

// databaseURL prefers an explicit DSN, else builds one from PG* vars when
// PGDATABASE is set. Empty disables the postgres geocode cache.
func databaseURL(dsn string) string {
	if strings.TrimSpace(dsn) != "" {
		return dsn
	}
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return ""
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
