// Package tide computes the astronomical tide baseline for a station from
// its harmonic constituents. The baseline is the deterministic part of the
// water level; the surge model adds the meteorological anomaly on top.
package tide

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
)

// epoch anchors constituent phases. Phases in the registry are given
// relative to this instant, which matches the convention of the harmonic
// analysis used to produce them.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Baseline evaluates the station's astronomical tide height in metres at
// time t:
//
//	h(t) = mean + Σ A_i · cos(ω_i·t − φ_i)
//
// with ω in degrees per hour and φ the constituent phase lag.
func Baseline(st registry.Station, t time.Time) float64 {
	hours := t.Sub(epoch).Hours()
	h := st.Tide.MeanLevel
	for _, c := range st.Tide.Constituents {
		speed, ok := registry.ConstituentSpeed(c.Name)
		if !ok {
			// Unknown names are rejected at registry load.
			continue
		}
		phase := (speed*hours - c.PhaseDeg) * math.Pi / 180
		h += c.Amplitude * math.Cos(phase)
	}
	return h
}

// Series evaluates the baseline at each timestep in [start, start+horizon),
// stepping by step.
func Series(st registry.Station, start time.Time, horizon, step time.Duration) []float64 {
	n := int(horizon / step)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Baseline(st, start.Add(time.Duration(i)*step)))
	}
	return out
}
