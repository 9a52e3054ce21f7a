// Package exporter writes the exchange-format JSON artifacts consumed by
// the website collaborator: buoy_data.json, storm_surge.json, and
// buoy_timeseries_24h.json. Writes are
// atomic (temp file plus rename) so a reader never sees a partial artifact.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
)

const (
	// Artifact filenames are part of the external contract; consumers poll
	// these exact names.
	ForecastFile   = "storm_surge.json"
	BuoyDataFile   = "buoy_data.json"
	TimeseriesFile = "buoy_timeseries_24h.json"
)

// Exporter writes run artifacts into a directory. It implements
// forecast.Sink.
type Exporter struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Exporter, creating the output directory if needed.
func New(dir string, logger *slog.Logger, metrics *observability.Metrics) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Exporter{dir: dir, logger: logger, metrics: metrics}, nil
}

// PublishForecast writes storm_surge.json.
func (e *Exporter) PublishForecast(_ context.Context, f domain.Forecast) error {
	if err := e.writeJSON(ForecastFile, f); err != nil {
		return err
	}
	e.logger.Info("forecast artifact written",
		"path", filepath.Join(e.dir, ForecastFile), "stations", len(f.Stations))
	return nil
}

// PublishBuoyData writes buoy_data.json.
func (e *Exporter) PublishBuoyData(_ context.Context, d domain.BuoyData) error {
	if err := e.writeJSON(BuoyDataFile, d); err != nil {
		return err
	}
	e.logger.Info("buoy data artifact written",
		"path", filepath.Join(e.dir, BuoyDataFile), "buoys", len(d.Buoys))
	return nil
}

// PublishTimeseries writes buoy_timeseries_24h.json.
func (e *Exporter) PublishTimeseries(_ context.Context, ts domain.BuoyTimeseries) error {
	if err := e.writeJSON(TimeseriesFile, ts); err != nil {
		return err
	}
	e.logger.Info("timeseries artifact written",
		"path", filepath.Join(e.dir, TimeseriesFile), "buoys", len(ts.Buoys))
	return nil
}

// writeJSON marshals v and renames a temp file over the target so the
// artifact is replaced atomically.
func (e *Exporter) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	data = append(data, '\n')

	target := filepath.Join(e.dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", target, err)
	}
	e.metrics.ArtifactsWritten.Inc()
	return nil
}
