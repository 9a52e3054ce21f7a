package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-surge-forecast/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "config/stations.yaml", cfg.RegistryPath)
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, 10*time.Minute, cfg.RunInterval)
	assert.Equal(t, 3*time.Hour, cfg.FreshnessWindow)
	assert.Equal(t, 12*time.Hour, cfg.MaxObservationAge)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, time.Second, cfg.FetchBackoff)
	assert.Equal(t, 48*time.Hour, cfg.ForecastHorizon)
	assert.Equal(t, time.Hour, cfg.ForecastStep)
	assert.Equal(t, 2, cfg.InterpMaxGap)
	assert.InDelta(t, 0.25, cfg.ConfidenceFloor, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.TimeseriesWindow)

	assert.Contains(t, cfg.SwobURLTemplate, "%s")
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REGISTRY_PATH", "/etc/surge/stations.yaml")
	t.Setenv("RUN_INTERVAL", "5m")
	t.Setenv("FRESHNESS_WINDOW", "2h")
	t.Setenv("MAX_OBS_AGE", "8h")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("DATABASE_URL", "postgres://surge@db/forecast")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/surge/stations.yaml", cfg.RegistryPath)
	assert.Equal(t, 5*time.Minute, cfg.RunInterval)
	assert.Equal(t, 2*time.Hour, cfg.FreshnessWindow)
	assert.Equal(t, 8*time.Hour, cfg.MaxObservationAge)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "postgres://surge@db/forecast", cfg.DatabaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable duration", "RUN_INTERVAL", "soon"},
		{"negative duration", "FETCH_TIMEOUT", "-5s"},
		{"unparseable int", "FETCH_RETRIES", "many"},
		{"zero workers", "STATION_WORKERS", "0"},
		{"zero concurrency", "FETCH_CONCURRENCY", "0"},
		{"confidence floor above one", "CONFIDENCE_FLOOR", "1.5"},
		{"negative interp gap", "INTERP_MAX_GAP", "-1"},
		{"template without placeholder", "SWOB_URL_TEMPLATE", "https://example.com/static.xml"},
		{"sub-hour timeseries window", "TIMESERIES_WINDOW", "30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_HorizonMustCoverStep(t *testing.T) {
	t.Setenv("FORECAST_HORIZON", "30m")
	t.Setenv("FORECAST_STEP", "1h")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORECAST_HORIZON")
}

func TestLoad_AgeMustCoverWindow(t *testing.T) {
	t.Setenv("FRESHNESS_WINDOW", "6h")
	t.Setenv("MAX_OBS_AGE", "4h")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_OBS_AGE")
}
