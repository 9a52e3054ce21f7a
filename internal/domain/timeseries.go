package domain

import "time"

// MetricPoint is one sampled value in a buoy metric history.
type MetricPoint struct {
	Timestamp time.Time `json:"time"`
	Value     float64   `json:"value"`
}

// MetricSeries is a single metric's history for one buoy over the export
// window, with its display name and SI unit.
type MetricSeries struct {
	Name   string        `json:"name"`
	Unit   string        `json:"unit"`
	Points []MetricPoint `json:"data"`
}

// BuoySeries groups one buoy's metric histories. Metrics the buoy never
// reported in the window are absent rather than empty.
type BuoySeries struct {
	Name    string                  `json:"name,omitempty"`
	Metrics map[string]MetricSeries `json:"metrics"`
}

// BuoyTimeseries is the serialized observation-history artifact: the
// trailing window of stored observations per buoy, per metric. Buoys with no
// stored observations in the window are omitted entirely.
type BuoyTimeseries struct {
	GeneratedAt time.Time             `json:"generated_utc"`
	WindowHours int                   `json:"window_hours"`
	Buoys       map[string]BuoySeries `json:"buoys"`
}
