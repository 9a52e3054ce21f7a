// Command genbuoy generates mock raw buoy observation fixtures for the test
// suites and for running the service against a local feed. It uses the
// actual domain normalizer so generated observations match real pipeline
// behavior.
//
// Usage:
//
//	go run ./cmd/genbuoy \
//	  -registry config/stations.yaml \
//	  -raw-out data/mock/raw_buoy_records.json \
//	  -obs-out data/mock/normalized_observations.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
)

// baseTime anchors the generated observation stream; fixtures are
// reproducible run to run.
var baseTime = time.Date(2026, time.January, 15, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	registryPath := flag.String("registry", "", "path to station registry YAML")
	rawOut := flag.String("raw-out", "", "output path for raw record fixture")
	obsOut := flag.String("obs-out", "", "output path for normalized observation fixture")
	hours := flag.Int("hours", 6, "hours of observation history to generate")
	flag.Parse()

	if *registryPath == "" || *rawOut == "" || *obsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -registry, -raw-out, -obs-out")
	}

	reg, err := registry.Load(*registryPath)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	domain.SetClock(clockwork.NewFakeClockAt(baseTime.Add(time.Duration(*hours) * time.Hour)))
	defer domain.SetClock(nil)

	var records []domain.RawBuoyRecord
	for i, buoyID := range reg.BuoyIDs() {
		records = append(records, generate(buoyID, i, *hours)...)
	}
	log.Printf("generated %d raw records for %d buoys", len(records), len(reg.BuoyIDs()))

	byBuoy, malformed := domain.NormalizeRecords(records)
	if len(malformed) > 0 {
		return fmt.Errorf("generator produced %d malformed records", len(malformed))
	}

	if err := writeJSON(*rawOut, records); err != nil {
		return err
	}
	if err := writeJSON(*obsOut, byBuoy); err != nil {
		return err
	}
	log.Printf("wrote %s and %s", *rawOut, *obsOut)
	return nil
}

// generate produces an hourly record stream for one buoy: a pressure dip
// with strengthening wind, phase-shifted per buoy so stations with several
// buoys see disagreeing inputs.
func generate(buoyID string, seed, hours int) []domain.RawBuoyRecord {
	records := make([]domain.RawBuoyRecord, 0, hours)
	for h := 0; h < hours; h++ {
		frac := float64(h) / float64(hours)
		phase := float64(seed) * 0.7

		wind := 20 + 30*math.Sin(frac*math.Pi+phase) // km/h
		dir := math.Mod(225+15*math.Sin(frac*2*math.Pi+phase), 360)
		pressure := 101.3 - 1.8*math.Sin(frac*math.Pi) // kPa
		wave := 0.5 + 1.2*frac

		records = append(records, domain.RawBuoyRecord{
			BuoyID:        buoyID,
			Timestamp:     baseTime.Add(time.Duration(h) * time.Hour).Format(time.RFC3339),
			WindSpeed:     &wind,
			WindSpeedUnit: "km/h",
			WindDirection: &dir,
			Pressure:      &pressure,
			PressureUnit:  "kPa",
			WaveHeight:    &wave,
			Quality:       "verified",
		})
	}
	return records
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
