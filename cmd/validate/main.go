// Command validate performs offline integrity checks across the service's
// configuration and artifacts: the station registry, the storm_surge.json
// forecast, the buoy_data.json snapshot, and optionally the
// buoy_timeseries_24h.json history. It verifies registry consistency,
// series ordering, confidence bounds, and cross-artifact agreement.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -registry config/stations.yaml \
//	  -forecast data/storm_surge.json \
//	  -buoys data/buoy_data.json \
//	  -timeseries data/buoy_timeseries_24h.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	registryPath := flag.String("registry", "", "path to station registry YAML")
	forecastPath := flag.String("forecast", "", "path to storm_surge.json artifact")
	buoysPath := flag.String("buoys", "", "path to buoy_data.json artifact")
	timeseriesPath := flag.String("timeseries", "", "path to buoy_timeseries_24h.json artifact (optional)")
	flag.Parse()

	if *registryPath == "" || *forecastPath == "" || *buoysPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*registryPath, *forecastPath, *buoysPath, *timeseriesPath); code != 0 {
		os.Exit(code)
	}
}

func run(registryPath, forecastPath, buoysPath, timeseriesPath string) int {
	fmt.Println("=== Storm Surge Artifact Validation ===")
	fmt.Println()

	reg, err := registry.Load(registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load registry: %v\n", err)
		return 1
	}

	var forecast domain.Forecast
	if err := loadJSON(forecastPath, &forecast); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load forecast artifact: %v\n", err)
		return 1
	}

	var buoyData domain.BuoyData
	if err := loadJSON(buoysPath, &buoyData); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load buoy artifact: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateForecastShape(&forecast, reg),
		validateSeries(&forecast),
		validateBuoyData(&buoyData, reg),
		validateCrossReferences(&forecast, reg),
	}

	if timeseriesPath != "" {
		var ts domain.BuoyTimeseries
		if err := loadJSON(timeseriesPath, &ts); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load timeseries artifact: %v\n", err)
			return 1
		}
		phases = append(phases, validateTimeseries(&ts, reg))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Artifacts: %d stations forecast, %d buoys observed\n",
		len(forecast.Stations), len(buoyData.Buoys))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateForecastShape(f *domain.Forecast, reg *registry.Registry) *phase {
	p := &phase{name: "forecast shape"}

	if f.GeneratedAt.IsZero() {
		p.errorf("generated_utc is zero")
	}
	if f.Unit != "meters" {
		p.errorf("unit is %q, want \"meters\"", f.Unit)
	}
	if f.HorizonHours <= 0 || f.TimestepMinutes <= 0 {
		p.errorf("horizon/timestep not positive: %dh / %dm", f.HorizonHours, f.TimestepMinutes)
	}
	if len(f.Stations) != len(reg.Stations()) {
		p.errorf("forecast has %d stations, registry has %d", len(f.Stations), len(reg.Stations()))
	}
	for _, sf := range f.Stations {
		if _, err := reg.Metadata(sf.StationID); err != nil {
			p.errorf("station %s not in registry", sf.StationID)
		}
	}
	return p
}

func validateSeries(f *domain.Forecast) *phase {
	p := &phase{name: "prediction series"}
	step := time.Duration(f.TimestepMinutes) * time.Minute

	for _, sf := range f.Stations {
		want := f.HorizonHours * 60 / f.TimestepMinutes
		if len(sf.Predictions) != want {
			p.errorf("station %s: %d predictions, want %d", sf.StationID, len(sf.Predictions), want)
		}
		for i, pred := range sf.Predictions {
			if i > 0 {
				gap := pred.Timestamp.Sub(sf.Predictions[i-1].Timestamp)
				if gap != step {
					p.errorf("station %s: timestep %d gap %s, want %s", sf.StationID, i, gap, step)
				}
			}
			switch pred.Status {
			case domain.StatusAbsent:
				if pred.Confidence != 0 {
					p.errorf("station %s: absent timestep %d has confidence %f", sf.StationID, i, pred.Confidence)
				}
			case domain.StatusPredicted, domain.StatusInterpolated:
				if pred.Confidence <= 0 || pred.Confidence > 1 {
					p.errorf("station %s: timestep %d confidence %f outside (0,1]", sf.StationID, i, pred.Confidence)
				}
			default:
				p.errorf("station %s: timestep %d has unknown status %q", sf.StationID, i, pred.Status)
			}
		}
	}
	return p
}

func validateBuoyData(d *domain.BuoyData, reg *registry.Registry) *phase {
	p := &phase{name: "buoy snapshot"}

	for _, id := range reg.BuoyIDs() {
		snap, ok := d.Buoys[id]
		if !ok {
			p.errorf("registry buoy %s missing from snapshot", id)
			continue
		}
		switch snap.Freshness {
		case domain.Fresh, domain.Stale:
			if snap.Timestamp.IsZero() {
				p.errorf("buoy %s is %s but has no timestamp", id, snap.Freshness)
			}
		case domain.Missing:
		default:
			p.errorf("buoy %s has unknown freshness %q", id, snap.Freshness)
		}
		if snap.WindSpeed != nil && (*snap.WindSpeed < 0 || *snap.WindSpeed > 100) {
			p.errorf("buoy %s wind speed %f m/s implausible", id, *snap.WindSpeed)
		}
		if snap.Pressure != nil && (*snap.Pressure < 850 || *snap.Pressure > 1100) {
			p.errorf("buoy %s pressure %f hPa implausible", id, *snap.Pressure)
		}
	}
	return p
}

func validateCrossReferences(f *domain.Forecast, reg *registry.Registry) *phase {
	p := &phase{name: "cross-artifact references"}

	for _, sf := range f.Stations {
		st, err := reg.Metadata(sf.StationID)
		if err != nil {
			continue // already reported by the shape phase
		}
		assigned := make(map[string]bool, len(st.Buoys))
		for _, b := range st.Buoys {
			assigned[b.BuoyID] = true
		}
		for i, pred := range sf.Predictions {
			for _, used := range pred.InputsUsed {
				if !assigned[used] {
					p.errorf("station %s timestep %d used unassigned buoy %s", sf.StationID, i, used)
				}
			}
		}
	}
	return p
}

func validateTimeseries(ts *domain.BuoyTimeseries, reg *registry.Registry) *phase {
	p := &phase{name: "observation history"}

	if ts.GeneratedAt.IsZero() {
		p.errorf("generated_utc is zero")
	}
	if ts.WindowHours <= 0 {
		p.errorf("window_hours %d not positive", ts.WindowHours)
	}
	cutoff := ts.GeneratedAt.Add(-time.Duration(ts.WindowHours) * time.Hour)

	assigned := make(map[string]bool)
	for _, id := range reg.BuoyIDs() {
		assigned[id] = true
	}

	for id, series := range ts.Buoys {
		if !assigned[id] {
			p.errorf("history buoy %s not in registry", id)
		}
		if len(series.Metrics) == 0 {
			p.errorf("buoy %s present with no metrics", id)
		}
		for metric, ms := range series.Metrics {
			if len(ms.Points) == 0 {
				p.errorf("buoy %s metric %s present with no points", id, metric)
			}
			for i, pt := range ms.Points {
				if i > 0 && !ms.Points[i-1].Timestamp.Before(pt.Timestamp) {
					p.errorf("buoy %s metric %s points not strictly ascending at %d", id, metric, i)
				}
				if pt.Timestamp.Before(cutoff) || pt.Timestamp.After(ts.GeneratedAt) {
					p.errorf("buoy %s metric %s point %d outside the window", id, metric, i)
				}
			}
		}
	}
	return p
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
