package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"transit-scorer/internal/temporal"
)

type Config struct {
	DatabaseURL  string
	City         string
	EdgesGeoJSON string

	NATSURL         string
	RequestSubject  string
	ResultPrefix    string
	QueueGroup      string
	LogNATSSubjects bool

	Workers        int
	ResultCacheTTL time.Duration
	NetworkRefresh time.Duration

	TrimEps          float64
	TemporalFactor   float64
	TemporalBias     float64
	SpatialThreshold float64
	WaitMissPolicy   temporal.MissPolicy
	StrictContiguity bool

	MetricsAddr string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// The edge table comes either from a GeoJSON export or from Postgres.
	cfg.EdgesGeoJSON = os.Getenv("EDGES_GEOJSON")
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if dsn == "" && cfg.EdgesGeoJSON == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		// With CITY the base DB only serves to look up the latest import.
		if db == "" && cfg.City != "" {
			db = "postgres"
		}
		if db == "" {
			return nil, errors.New("EDGES_GEOJSON, PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.RequestSubject = getenvDefault("NATS_REQUEST_SUBJECT", "trajscore.requests")
	cfg.ResultPrefix = getenvDefault("NATS_RESULT_PREFIX", "trajscore.results")
	cfg.QueueGroup = getenvDefault("NATS_QUEUE_GROUP", "trajscore")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	var err error
	if cfg.Workers, err = positiveInt("WORKERS", 4); err != nil {
		return nil, err
	}
	sec, err := positiveInt("RESULT_CACHE_TTL_SEC", 600)
	if err != nil {
		return nil, err
	}
	cfg.ResultCacheTTL = time.Duration(sec) * time.Second

	// Network refresh (minutes); 0 disables the watcher.
	if v := os.Getenv("NETWORK_REFRESH_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 {
			return nil, fmt.Errorf("invalid NETWORK_REFRESH_MINUTES: %q", v)
		}
		cfg.NetworkRefresh = time.Duration(min) * time.Minute
	} else {
		cfg.NetworkRefresh = 30 * time.Minute
	}

	if cfg.TrimEps, err = nonNegativeFloat("TRIM_EPS", 0.1); err != nil {
		return nil, err
	}
	if cfg.TemporalFactor, err = nonNegativeFloat("TEMPORAL_FACTOR", temporal.DefaultFactor); err != nil {
		return nil, err
	}
	if cfg.TemporalFactor == 0 {
		return nil, errors.New("TEMPORAL_FACTOR must be positive")
	}
	if cfg.TemporalBias, err = nonNegativeFloat("TEMPORAL_BIAS", temporal.DefaultBias); err != nil {
		return nil, err
	}
	if cfg.SpatialThreshold, err = nonNegativeFloat("SPATIAL_THRESHOLD_M", 300); err != nil {
		return nil, err
	}

	if cfg.WaitMissPolicy, err = temporal.ParseMissPolicy(strings.ToLower(strings.TrimSpace(os.Getenv("WAIT_MISS_POLICY")))); err != nil {
		return nil, fmt.Errorf("invalid WAIT_MISS_POLICY: %w", err)
	}

	cfg.StrictContiguity = true
	if v := os.Getenv("STRICT_CONTIGUITY"); v != "" {
		cfg.StrictContiguity = parseBool(v)
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func nonNegativeFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
