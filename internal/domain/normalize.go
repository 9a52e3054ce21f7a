package domain

import (
	"sort"
	"strings"
	"time"
)

// Unit conversion factors to SI. Conversions are total: an unrecognized unit
// string falls back to the SI default rather than dropping the value, so no
// reading is silently lost to a labelling quirk upstream.
const (
	kmhToMS  = 1.0 / 3.6
	ktToMS   = 0.514444
	mphToMS  = 0.44704
	ftToM    = 0.3048
	inHgToHP = 33.8639
)

// NormalizeRecords converts heterogeneous raw buoy records into per-buoy
// ordered Observation sequences. Records lacking the minimum field set
// (buoy_id, timestamp) are dropped and reported via the returned
// MalformedRecordErrors; the remaining records still normalize. Within each
// buoy the result is sorted by timestamp ascending with exact duplicates
// (same buoy, same timestamp) collapsed to the last occurrence.
func NormalizeRecords(records []RawBuoyRecord) (map[string][]Observation, []*MalformedRecordError) {
	byBuoy := make(map[string][]Observation)
	var malformed []*MalformedRecordError

	for _, rec := range records {
		obs, err := NormalizeRecord(rec)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		byBuoy[obs.BuoyID] = append(byBuoy[obs.BuoyID], obs)
	}

	for id, seq := range byBuoy {
		byBuoy[id] = sortAndDedupe(seq)
	}
	return byBuoy, malformed
}

// NormalizeRecord converts a single raw record into an Observation with SI
// units and a UTC timestamp.
func NormalizeRecord(rec RawBuoyRecord) (Observation, *MalformedRecordError) {
	if strings.TrimSpace(rec.BuoyID) == "" {
		return Observation{}, &MalformedRecordError{Reason: "missing buoy_id"}
	}
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return Observation{}, &MalformedRecordError{BuoyID: rec.BuoyID, Reason: "bad timestamp: " + rec.Timestamp}
	}

	obs := Observation{
		BuoyID:        strings.TrimSpace(rec.BuoyID),
		Timestamp:     ts,
		Quality:       parseQuality(rec.Quality),
		WaterLevel:    rec.WaterLevel,
		WindDirection: normalizeDirection(rec.WindDirection),
		WindSpeed:     convert(rec.WindSpeed, windFactor(rec.WindSpeedUnit)),
		Pressure:      convert(rec.Pressure, pressureFactor(rec.PressureUnit)),
		WaveHeight:    convert(rec.WaveHeight, lengthFactor(rec.WaveUnit)),
	}
	return obs, nil
}

// parseTimestamp accepts RFC3339 and the space-separated variant the EC feed
// occasionally emits. Always returns UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseQuality(s string) QualityFlag {
	if strings.EqualFold(strings.TrimSpace(s), string(QualityVerified)) {
		return QualityVerified
	}
	return QualityProvisional
}

func windFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "km/h", "kmh", "kph":
		return kmhToMS
	case "kt", "kn", "knots":
		return ktToMS
	case "mph":
		return mphToMS
	default: // "m/s" or unlabelled
		return 1
	}
}

func pressureFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kpa":
		return 10
	case "pa":
		return 0.01
	case "inhg":
		return inHgToHP
	default: // "hPa"/"mbar" or unlabelled
		return 1
	}
}

func lengthFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ft", "feet":
		return ftToM
	default:
		return 1
	}
}

func convert(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

// normalizeDirection wraps a compass bearing into [0, 360).
func normalizeDirection(v *float64) *float64 {
	if v == nil {
		return nil
	}
	d := *v
	d = d - 360*float64(int(d/360))
	if d < 0 {
		d += 360
	}
	return &d
}

// sortAndDedupe orders observations by timestamp ascending. When two records
// share a timestamp the later one in input order wins; the feed re-publishes
// corrected readings under the same observation time.
func sortAndDedupe(seq []Observation) []Observation {
	sort.SliceStable(seq, func(i, j int) bool {
		return seq[i].Timestamp.Before(seq[j].Timestamp)
	})
	out := seq[:0]
	for _, obs := range seq {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(obs.Timestamp) {
			out[len(out)-1] = obs
			continue
		}
		out = append(out, obs)
	}
	return out
}

// Cardinal returns the 16-point compass name for a bearing in degrees.
func Cardinal(deg float64) string {
	dirs := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	d := deg - 360*float64(int(deg/360))
	if d < 0 {
		d += 360
	}
	idx := int((d+11.25)/22.5) % 16
	return dirs[idx]
}
