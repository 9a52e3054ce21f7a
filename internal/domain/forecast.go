package domain

import "time"

// TimestepStatus records how a forecast timestep's value came to be.
type TimestepStatus string

const (
	// StatusPredicted means the surge model produced the value directly.
	StatusPredicted TimestepStatus = "predicted"
	// StatusInterpolated means the assembler filled the value linearly from
	// its valid neighbours.
	StatusInterpolated TimestepStatus = "interpolated"
	// StatusAbsent means no value could be produced or interpolated. Value
	// and confidence are zero and must not be consumed.
	StatusAbsent TimestepStatus = "absent"
)

// SurgePrediction is the model output for one (station, timestep). Produced
// exactly once per pair; immutable.
type SurgePrediction struct {
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"time"`

	// PredictedAnomaly is the forecast water level in metres above the
	// station datum: astronomical tide baseline plus wind-stress and
	// inverse-barometer surge terms.
	PredictedAnomaly float64 `json:"value"`

	// Confidence is in (0, 1]. 1.0 iff every registry-assigned buoy
	// contributed fresh data at this timestep.
	Confidence float64 `json:"confidence"`

	Status TimestepStatus `json:"status"`

	// InputsUsed lists the buoy IDs that actually contributed.
	InputsUsed []string `json:"inputs_used,omitempty"`
}

// StationForecast is one station's ordered prediction series.
type StationForecast struct {
	StationID   string            `json:"station_id"`
	Name        string            `json:"name"`
	Location    Geo               `json:"location"`
	Predictions []SurgePrediction `json:"predictions"`
}

// Geo is a WGS-84 coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Forecast is the top-level artifact handed to the exchange-format writer.
// Stations appear in registry order; predictions are timestep-ascending.
type Forecast struct {
	GeneratedAt     time.Time         `json:"generated_utc"`
	HorizonHours    int               `json:"horizon_hours"`
	TimestepMinutes int               `json:"timestep_minutes"`
	Unit            string            `json:"unit"`
	Stations        []StationForecast `json:"stations"`
}

// BuoySnapshot is the latest-observation view exported for raw display,
// one entry per buoy.
type BuoySnapshot struct {
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Freshness Freshness `json:"freshness"`

	WaterLevel    *float64 `json:"water_level,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindDirection *float64 `json:"wind_direction,omitempty"`
	WindCardinal  string   `json:"wind_cardinal,omitempty"`
	Pressure      *float64 `json:"barometric_pressure,omitempty"`
	WaveHeight    *float64 `json:"wave_height,omitempty"`

	Quality QualityFlag `json:"quality"`
}

// BuoyData is the serialized latest-observation artifact.
type BuoyData struct {
	GeneratedAt time.Time               `json:"generated_utc"`
	Buoys       map[string]BuoySnapshot `json:"buoys"`
}
