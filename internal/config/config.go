package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RegistryPath string
	OutputDir    string
	HTTPAddr     string
	LogLevel     string
	LogFormat    string

	ShutdownTimeout time.Duration
	RunInterval     time.Duration
	StationWorkers  int

	// Supervisor policy.
	FreshnessWindow   time.Duration
	MaxObservationAge time.Duration
	FetchTimeout      time.Duration
	FetchRetries      int
	FetchBackoff      time.Duration
	FetchConcurrency  int

	// Forecast grid and gap handling.
	ForecastHorizon time.Duration
	ForecastStep    time.Duration
	InterpMaxGap    int
	ConfidenceFloor float64

	// Observation-history artifact window.
	TimeseriesWindow time.Duration

	// SWOB feed.
	SwobURLTemplate string

	// Kafka publication (enabled when brokers are set).
	KafkaBrokers       []string
	KafkaForecastTopic   string
	KafkaBuoyTopic       string
	KafkaTimeseriesTopic string

	// Postgres observation store (in-memory when unset).
	DatabaseURL string
}

// KafkaEnabled reports whether forecast publication to Kafka is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		RegistryPath: envOrDefault("REGISTRY_PATH", "config/stations.yaml"),
		OutputDir:    envOrDefault("OUTPUT_DIR", "data"),
		HTTPAddr:     envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		LogFormat:    envOrDefault("LOG_FORMAT", "json"),

		SwobURLTemplate: envOrDefault("SWOB_URL_TEMPLATE",
			"https://dd.weather.gc.ca/observations/swob-ml/latest/%s.xml"),

		KafkaBrokers:         parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaForecastTopic:   envOrDefault("KAFKA_FORECAST_TOPIC", "surge-forecasts"),
		KafkaBuoyTopic:       envOrDefault("KAFKA_BUOY_TOPIC", "buoy-observations"),
		KafkaTimeseriesTopic: envOrDefault("KAFKA_TIMESERIES_TOPIC", "buoy-timeseries"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = durationEnv("RUN_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StationWorkers, err = intEnv("STATION_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.FreshnessWindow, err = durationEnv("FRESHNESS_WINDOW", 3*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxObservationAge, err = durationEnv("MAX_OBS_AGE", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchRetries, err = intEnv("FETCH_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.FetchBackoff, err = durationEnv("FETCH_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = intEnv("FETCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.ForecastHorizon, err = durationEnv("FORECAST_HORIZON", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ForecastStep, err = durationEnv("FORECAST_STEP", time.Hour); err != nil {
		return nil, err
	}
	if cfg.InterpMaxGap, err = intEnv("INTERP_MAX_GAP", 2); err != nil {
		return nil, err
	}
	if cfg.ConfidenceFloor, err = floatEnv("CONFIDENCE_FLOOR", 0.25); err != nil {
		return nil, err
	}
	if cfg.TimeseriesWindow, err = durationEnv("TIMESERIES_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.RegistryPath == "" {
		return errors.New("REGISTRY_PATH is required")
	}
	if c.StationWorkers < 1 {
		return errors.New("STATION_WORKERS must be at least 1")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}
	if c.ForecastStep <= 0 || c.ForecastHorizon < c.ForecastStep {
		return errors.New("FORECAST_HORIZON must cover at least one FORECAST_STEP")
	}
	if c.FreshnessWindow <= 0 || c.MaxObservationAge < c.FreshnessWindow {
		return errors.New("MAX_OBS_AGE must be at least FRESHNESS_WINDOW")
	}
	if c.ConfidenceFloor <= 0 || c.ConfidenceFloor > 1 {
		return errors.New("CONFIDENCE_FLOOR must be in (0, 1]")
	}
	if c.InterpMaxGap < 0 {
		return errors.New("INTERP_MAX_GAP must not be negative")
	}
	if c.TimeseriesWindow < time.Hour {
		return errors.New("TIMESERIES_WINDOW must be at least one hour")
	}
	if !strings.Contains(c.SwobURLTemplate, "%s") {
		return errors.New("SWOB_URL_TEMPLATE must contain %s for the buoy id")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
