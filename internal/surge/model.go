// Package surge implements the storm-surge model: a weighted combination of
// wind-stress, inverse-barometer, and wave-setup terms over the contributing
// buoys, added to the station's astronomical tide baseline.
package surge

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
	"github.com/couchcryptid/storm-surge-forecast/internal/tide"
)

// Params holds the model's tunable constants. DefaultParams matches the
// operational configuration for the Strait of Georgia stations.
type Params struct {
	// StalenessWindow is the maximum age an observation may have, relative
	// to the timestep (capped at the run clock), and still count as fresh.
	StalenessWindow time.Duration

	// Horizon and Step define the forecast grid.
	Horizon time.Duration
	Step    time.Duration

	// ConfidenceFloor is the minimum confidence assigned when at least one
	// buoy contributed. Never zero: a prediction either has usable
	// confidence or does not exist.
	ConfidenceFloor float64

	// StaleFactor scales confidence when any contributing observation was
	// stale rather than fresh.
	StaleFactor float64

	// DecayTau is the e-folding time for the meteorological forcing at
	// increasing lead time. Surge is persistence-forecast from the latest
	// observations, so the anomaly relaxes toward the pure tide baseline as
	// the lead grows.
	DecayTau time.Duration

	// WindStressCoeff converts squared onshore wind speed ((m/s)^2) to
	// metres of setup.
	WindStressCoeff float64

	// WaveSetupCoeff converts significant wave height to metres of setup.
	WaveSetupCoeff float64

	// ReferencePressure is the barometric pressure (hPa) producing zero
	// inverse-barometer anomaly.
	ReferencePressure float64

	// InverseBarometer is metres of rise per hPa of pressure deficit.
	InverseBarometer float64
}

// DefaultParams returns the operational model constants.
func DefaultParams() Params {
	return Params{
		StalenessWindow:   3 * time.Hour,
		Horizon:           48 * time.Hour,
		Step:              time.Hour,
		ConfidenceFloor:   0.25,
		StaleFactor:       0.75,
		DecayTau:          24 * time.Hour,
		WindStressCoeff:   4.0e-4,
		WaveSetupCoeff:    0.05,
		ReferencePressure: 1013.25,
		InverseBarometer:  0.01,
	}
}

// StepResult is the model output for one timestep: either a prediction or an
// InsufficientDataError for the assembler to resolve.
type StepResult struct {
	Timestamp  time.Time
	Prediction domain.SurgePrediction
	Err        *domain.InsufficientDataError
}

// Model computes surge predictions for stations. Models are stateless and
// safe for concurrent use.
type Model struct {
	params Params
}

// New creates a Model with the given parameters.
func New(p Params) *Model {
	return &Model{params: p}
}

// Params returns the model's configured parameters.
func (m *Model) Params() Params { return m.params }

// PredictSeries produces one StepResult per timestep over the horizon,
// starting at now truncated to the step boundary. statuses must cover the
// station's assigned buoys; absent entries are treated as Missing.
func (m *Model) PredictSeries(st registry.Station, statuses map[string]domain.BuoyStatus, now time.Time) []StepResult {
	start := now.UTC().Truncate(m.params.Step)
	n := int(m.params.Horizon / m.params.Step)

	results := make([]StepResult, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * m.params.Step)
		pred, err := m.PredictAt(st, statuses, now, ts)
		res := StepResult{Timestamp: ts, Err: err}
		if err == nil {
			res.Prediction = pred
		}
		results = append(results, res)
	}
	return results
}

// PredictAt computes the prediction for a single (station, timestep) pair.
func (m *Model) PredictAt(st registry.Station, statuses map[string]domain.BuoyStatus, now, ts time.Time) (domain.SurgePrediction, *domain.InsufficientDataError) {
	// Freshness is judged against the timestep, but an observation can never
	// be newer than the run clock, so future timesteps are judged against now.
	ref := ts
	if ref.After(now) {
		ref = now
	}

	type contribution struct {
		buoyID string
		weight float64
		surge  float64
		stale  bool
	}

	var (
		contribs  []contribution
		weightSum float64
		anyStale  bool
	)

	for _, assign := range st.Buoys {
		status, ok := statuses[assign.BuoyID]
		if !ok || status.Freshness == domain.Missing {
			continue
		}
		obs, ok := status.LatestBefore(ts)
		if !ok {
			continue
		}

		age := ref.Sub(obs.Timestamp)
		stale := age > m.params.StalenessWindow
		if stale && status.Freshness != domain.Stale {
			// Outside the window and not blessed as a stale fallback by the
			// supervisor: exclude.
			continue
		}

		term, ok := m.forcingTerm(st, obs)
		if !ok {
			continue
		}

		contribs = append(contribs, contribution{
			buoyID: assign.BuoyID,
			weight: assign.Weight,
			surge:  term,
			stale:  stale,
		})
		weightSum += assign.Weight
		anyStale = anyStale || stale
	}

	if len(contribs) == 0 {
		return domain.SurgePrediction{}, &domain.InsufficientDataError{StationID: st.ID, Timestep: ts}
	}

	// Re-normalize weights over the buoys actually present. The renormalized
	// weights must sum to 1.0 within floating epsilon regardless of how many
	// registry-assigned buoys dropped out.
	var surgeTerm float64
	inputs := make([]string, 0, len(contribs))
	for _, c := range contribs {
		surgeTerm += (c.weight / weightSum) * c.surge
		inputs = append(inputs, c.buoyID)
	}

	// Persistence decay: the meteorological anomaly relaxes toward zero as
	// lead time grows, leaving the astronomical baseline.
	if lead := ts.Sub(now); lead > 0 {
		surgeTerm *= math.Exp(-lead.Hours() / m.params.DecayTau.Hours())
	}

	baseline := tide.Baseline(st, ts) + st.DatumOffset

	return domain.SurgePrediction{
		StationID:        st.ID,
		Timestamp:        ts,
		PredictedAnomaly: baseline + surgeTerm,
		Confidence:       m.confidence(len(contribs), len(st.Buoys), anyStale),
		Status:           domain.StatusPredicted,
		InputsUsed:       inputs,
	}, nil
}

// forcingTerm computes one buoy's meteorological surge contribution in
// metres. A buoy must report wind or pressure to contribute; wave setup is
// additive when present.
func (m *Model) forcingTerm(st registry.Station, obs domain.Observation) (float64, bool) {
	if obs.WindSpeed == nil && obs.Pressure == nil {
		return 0, false
	}

	var term float64
	if obs.Pressure != nil {
		term += (m.params.ReferencePressure - *obs.Pressure) * m.params.InverseBarometer
	}
	if obs.WindSpeed != nil {
		onshore := 1.0
		if obs.WindDirection != nil {
			// Meteorological convention: direction is where the wind comes
			// from. The wind blows toward dir+180; setup is maximal when
			// that aligns with the station's onshore bearing.
			toward := *obs.WindDirection + 180
			onshore = math.Cos((toward - st.ShoreBearing) * math.Pi / 180)
		}
		term += m.params.WindStressCoeff * (*obs.WindSpeed) * (*obs.WindSpeed) * onshore
	}
	if obs.WaveHeight != nil {
		term += m.params.WaveSetupCoeff * *obs.WaveHeight
	}
	return term, true
}

// confidence maps the contributing-buoy fraction to (0, 1]. Exactly 1.0 only
// when every assigned buoy contributed fresh data.
func (m *Model) confidence(used, assigned int, anyStale bool) float64 {
	c := float64(used) / float64(assigned)
	if anyStale {
		c *= m.params.StaleFactor
	}
	if c < m.params.ConfidenceFloor {
		c = m.params.ConfidenceFloor
	}
	if c > 1 {
		c = 1
	}
	return c
}
