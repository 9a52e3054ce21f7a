package domain

import "time"

// QualityFlag distinguishes verified from provisional readings. Environment
// Canada marks buoy reports provisional until they pass QA; both are usable
// for forecasting, but the flag is carried through to consumers.
type QualityFlag string

const (
	QualityVerified    QualityFlag = "verified"
	QualityProvisional QualityFlag = "provisional"
)

// Freshness classifies a buoy's best available observation relative to the
// staleness window at forecast time.
type Freshness string

const (
	// Fresh means the observation is inside the staleness window.
	Fresh Freshness = "fresh"
	// Stale means the observation is outside the window but younger than the
	// hard maximum age. Usable as fallback input with reduced confidence.
	Stale Freshness = "stale"
	// Missing means no usable observation exists for the buoy in this run.
	Missing Freshness = "missing"
)

// RawBuoyRecord is the flat JSON shape published by the collector (and
// produced by the SWOB-ML parser). Fields beyond buoy_id and timestamp are
// optional; unit fields qualify their value field and default to SI when
// empty.
type RawBuoyRecord struct {
	BuoyID    string `json:"buoy_id"`
	Timestamp string `json:"timestamp"`

	WaterLevel    *float64 `json:"water_level,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindSpeedUnit string   `json:"wind_speed_unit,omitempty"` // "m/s" (default), "km/h", "kt", "mph"
	WindDirection *float64 `json:"wind_direction,omitempty"`  // degrees true
	Pressure      *float64 `json:"barometric_pressure,omitempty"`
	PressureUnit  string   `json:"barometric_pressure_unit,omitempty"` // "hPa" (default), "kPa", "Pa", "inHg"
	WaveHeight    *float64 `json:"wave_height,omitempty"`
	WaveUnit      string   `json:"wave_height_unit,omitempty"` // "m" (default), "ft"

	Quality string `json:"quality,omitempty"` // "verified" or "provisional" (default)
}

// Observation is a normalized buoy reading. All values are SI: wind in m/s,
// pressure in hPa, heights in metres, timestamps in UTC. Immutable once
// constructed by the normalizer.
type Observation struct {
	BuoyID    string      `json:"buoy_id"`
	Timestamp time.Time   `json:"timestamp"`
	Quality   QualityFlag `json:"quality"`

	WaterLevel    *float64 `json:"water_level,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindDirection *float64 `json:"wind_direction,omitempty"`
	Pressure      *float64 `json:"barometric_pressure,omitempty"`
	WaveHeight    *float64 `json:"wave_height,omitempty"`
}

// BuoyStatus pairs a buoy's freshness classification with the observations
// available to the current forecast run, newest last.
type BuoyStatus struct {
	BuoyID       string
	Freshness    Freshness
	Observations []Observation
}

// Latest returns the newest observation, or false if none exist.
func (s BuoyStatus) Latest() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// LatestBefore returns the newest observation at or before t, or false if
// none qualifies. Observations are ordered by timestamp, so scan backwards.
func (s BuoyStatus) LatestBefore(t time.Time) (Observation, bool) {
	for i := len(s.Observations) - 1; i >= 0; i-- {
		if !s.Observations[i].Timestamp.After(t) {
			return s.Observations[i], true
		}
	}
	return Observation{}, false
}
