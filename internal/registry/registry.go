// Package registry loads and serves the static tidal-station reference data:
// datum offsets, associated buoys with interpolation weights, and harmonic
// tide constituents. The registry is immutable after load; Reload swaps the
// entire snapshot atomically so concurrent readers never observe a partial
// update.
package registry

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

// BuoyAssignment associates a buoy with a station, ordered by distance.
type BuoyAssignment struct {
	BuoyID string  `yaml:"id"`
	Name   string  `yaml:"name,omitempty"`
	Weight float64 `yaml:"weight"`
}

// Constituent is one harmonic tide constituent. Speed is looked up from the
// standard table by name; amplitude and phase come from the station's
// published harmonic analysis.
type Constituent struct {
	Name      string  `yaml:"name"`
	Amplitude float64 `yaml:"amplitude_m"`
	PhaseDeg  float64 `yaml:"phase_deg"`
}

// Tide holds a station's astronomical tide parameters.
type Tide struct {
	MeanLevel    float64       `yaml:"mean_level_m"`
	Constituents []Constituent `yaml:"constituents"`
}

// Station is one tidal station's reference metadata. Read-only for the
// lifetime of a snapshot.
type Station struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Lat          float64          `yaml:"lat"`
	Lon          float64          `yaml:"lon"`
	DatumOffset  float64          `yaml:"datum_offset_m"`
	ShoreBearing float64          `yaml:"shore_bearing_deg"` // direction of onshore wind forcing, degrees true
	Buoys        []BuoyAssignment `yaml:"buoys"`
	Tide         Tide             `yaml:"tide"`
}

// Geo returns the station's coordinates as a domain value.
func (s Station) Geo() domain.Geo {
	return domain.Geo{Lat: s.Lat, Lon: s.Lon}
}

// BuoyIDs returns the assigned buoy IDs in registry (distance) order.
func (s Station) BuoyIDs() []string {
	ids := make([]string, len(s.Buoys))
	for i, b := range s.Buoys {
		ids[i] = b.BuoyID
	}
	return ids
}

// snapshot is an immutable view of the loaded registry.
type snapshot struct {
	stations   []Station
	byID       map[string]int
	byBuoy     map[string][]string // buoy_id -> station_ids
	buoyNames  map[string]string
	sourcePath string
}

// Registry serves station metadata with O(1) lookups after a one-time load.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// Load reads a registry YAML file, validates it, and returns a ready
// Registry.
func Load(path string) (*Registry, error) {
	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.snap.Store(snap)
	return r, nil
}

// Reload re-reads the registry file and swaps the snapshot atomically. On
// any error the previous snapshot stays in place.
func (r *Registry) Reload() error {
	old := r.snap.Load()
	snap, err := loadSnapshot(old.sourcePath)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// Stations returns all stations in file order. The returned slice is shared;
// callers must not mutate it.
func (r *Registry) Stations() []Station {
	return r.snap.Load().stations
}

// Metadata returns the station with the given ID.
func (r *Registry) Metadata(stationID string) (Station, error) {
	snap := r.snap.Load()
	i, ok := snap.byID[stationID]
	if !ok {
		return Station{}, &domain.UnknownStationError{StationID: stationID}
	}
	return snap.stations[i], nil
}

// StationsNear returns the IDs of stations that list the given buoy.
func (r *Registry) StationsNear(buoyID string) []string {
	return r.snap.Load().byBuoy[buoyID]
}

// BuoyIDs returns every buoy referenced by any station, without duplicates,
// in first-appearance order.
func (r *Registry) BuoyIDs() []string {
	snap := r.snap.Load()
	seen := make(map[string]bool)
	var ids []string
	for _, st := range snap.stations {
		for _, b := range st.Buoys {
			if !seen[b.BuoyID] {
				seen[b.BuoyID] = true
				ids = append(ids, b.BuoyID)
			}
		}
	}
	return ids
}

// BuoyName returns the display name configured for a buoy, if any.
func (r *Registry) BuoyName(buoyID string) string {
	return r.snap.Load().buoyNames[buoyID]
}

type registryFile struct {
	Stations []Station `yaml:"stations"`
}

func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(file.Stations) == 0 {
		return nil, fmt.Errorf("registry %s defines no stations", path)
	}

	snap := &snapshot{
		byID:       make(map[string]int, len(file.Stations)),
		byBuoy:     make(map[string][]string),
		buoyNames:  make(map[string]string),
		sourcePath: path,
	}
	for i, st := range file.Stations {
		if err := validateStation(st); err != nil {
			return nil, fmt.Errorf("station %q: %w", st.ID, err)
		}
		if _, dup := snap.byID[st.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %q", st.ID)
		}
		snap.byID[st.ID] = i
		for _, b := range st.Buoys {
			snap.byBuoy[b.BuoyID] = append(snap.byBuoy[b.BuoyID], st.ID)
			if b.Name != "" {
				snap.buoyNames[b.BuoyID] = b.Name
			}
		}
	}
	snap.stations = file.Stations
	return snap, nil
}

func validateStation(st Station) error {
	if st.ID == "" {
		return fmt.Errorf("missing id")
	}
	if st.Lat < -90 || st.Lat > 90 {
		return fmt.Errorf("invalid latitude %f", st.Lat)
	}
	if st.Lon < -180 || st.Lon > 180 {
		return fmt.Errorf("invalid longitude %f", st.Lon)
	}
	if len(st.Buoys) == 0 {
		return fmt.Errorf("no associated buoys")
	}

	var sum float64
	for _, b := range st.Buoys {
		if b.BuoyID == "" {
			return fmt.Errorf("buoy assignment missing id")
		}
		if b.Weight <= 0 {
			return fmt.Errorf("buoy %s: weight must be positive, got %f", b.BuoyID, b.Weight)
		}
		sum += b.Weight
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("interpolation weights sum to %f, want 1.0", sum)
	}

	for _, c := range st.Tide.Constituents {
		if _, ok := ConstituentSpeed(c.Name); !ok {
			return fmt.Errorf("unknown tide constituent %q", c.Name)
		}
		if c.Amplitude < 0 {
			return fmt.Errorf("constituent %s: negative amplitude", c.Name)
		}
	}
	return nil
}
