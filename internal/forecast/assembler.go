// Package forecast assembles per-station surge predictions into the final
// Forecast artifact and orchestrates the periodic generation runs.
package forecast

import (
	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
	"github.com/couchcryptid/storm-surge-forecast/internal/surge"
)

// Assembler merges model output into station series, resolving
// insufficient-data gaps by bounded linear interpolation.
type Assembler struct {
	// maxGap is the widest run of consecutive missing timesteps that may be
	// interpolated. Wider gaps are left explicitly absent, never fabricated.
	maxGap int
}

// NewAssembler creates an Assembler with the given maximum interpolatable
// gap width, in timesteps.
func NewAssembler(maxGap int) *Assembler {
	return &Assembler{maxGap: maxGap}
}

// AssembleStation converts a station's step results into its final ordered
// prediction series. Every timestep appears exactly once: predicted,
// interpolated, or absent.
func (a *Assembler) AssembleStation(st registry.Station, steps []surge.StepResult) domain.StationForecast {
	preds := make([]domain.SurgePrediction, len(steps))
	for i, step := range steps {
		if step.Err == nil {
			preds[i] = step.Prediction
			continue
		}
		preds[i] = domain.SurgePrediction{
			StationID: st.ID,
			Timestamp: step.Timestamp,
			Status:    domain.StatusAbsent,
		}
	}

	a.fillGaps(preds)

	return domain.StationForecast{
		StationID:   st.ID,
		Name:        st.Name,
		Location:    st.Geo(),
		Predictions: preds,
	}
}

// fillGaps linearly interpolates runs of absent timesteps bounded by valid
// neighbours on both sides, when the run is no wider than maxGap.
// Interpolated steps carry the lower of the two neighbours' confidence and
// are flagged so consumers can tell them from model output.
func (a *Assembler) fillGaps(preds []domain.SurgePrediction) {
	i := 0
	for i < len(preds) {
		if preds[i].Status != domain.StatusAbsent {
			i++
			continue
		}

		start := i
		for i < len(preds) && preds[i].Status == domain.StatusAbsent {
			i++
		}
		width := i - start

		left := start - 1
		right := i
		if left < 0 || right >= len(preds) || width > a.maxGap {
			continue // unbounded or too wide: leave absent
		}

		lv, rv := preds[left], preds[right]
		conf := lv.Confidence
		if rv.Confidence < conf {
			conf = rv.Confidence
		}
		span := float64(right - left)
		for j := start; j < right; j++ {
			frac := float64(j-left) / span
			preds[j].PredictedAnomaly = lv.PredictedAnomaly + frac*(rv.PredictedAnomaly-lv.PredictedAnomaly)
			preds[j].Confidence = conf
			preds[j].Status = domain.StatusInterpolated
		}
	}
}

// Assemble builds the top-level Forecast from committed station series, in
// the order given (registry order).
func Assemble(stations []domain.StationForecast, horizonHours, timestepMinutes int) domain.Forecast {
	return domain.Forecast{
		GeneratedAt:     domain.Now(),
		HorizonHours:    horizonHours,
		TimestepMinutes: timestepMinutes,
		Unit:            "meters",
		Stations:        stations,
	}
}

// BuildBuoyData derives the latest-observation artifact from supervisor
// output. Missing buoys are included with their freshness state only, so
// consumers can distinguish "feed down" from "buoy unknown".
func BuildBuoyData(statuses map[string]domain.BuoyStatus, reg *registry.Registry) domain.BuoyData {
	out := domain.BuoyData{
		GeneratedAt: domain.Now(),
		Buoys:       make(map[string]domain.BuoySnapshot, len(statuses)),
	}
	for id, status := range statuses {
		snap := domain.BuoySnapshot{
			Name:      reg.BuoyName(id),
			Freshness: status.Freshness,
		}
		if obs, ok := status.Latest(); ok {
			snap.Timestamp = obs.Timestamp
			snap.Quality = obs.Quality
			snap.WaterLevel = obs.WaterLevel
			snap.WindSpeed = obs.WindSpeed
			snap.WindDirection = obs.WindDirection
			snap.Pressure = obs.Pressure
			snap.WaveHeight = obs.WaveHeight
			if obs.WindDirection != nil {
				snap.WindCardinal = domain.Cardinal(*obs.WindDirection)
			}
		}
		out.Buoys[id] = snap
	}
	return out
}
