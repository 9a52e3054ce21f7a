package domain

import (
	"fmt"
	"time"
)

// MalformedRecordError reports a raw record that lacks the minimum required
// field set (buoy_id, timestamp) or carries an unparseable value. The record
// is dropped; the run continues.
type MalformedRecordError struct {
	BuoyID string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.BuoyID == "" {
		return fmt.Sprintf("malformed record: %s", e.Reason)
	}
	return fmt.Sprintf("malformed record for buoy %s: %s", e.BuoyID, e.Reason)
}

// UnknownStationError reports a query for a station_id absent from the
// registry. This is a configuration error, fatal to the run that requested
// the station.
type UnknownStationError struct {
	StationID string
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("unknown station %q", e.StationID)
}

// InsufficientDataError reports a (station, timestep) for which zero
// contributing buoys had fresh-enough data. The assembler recovers by
// interpolating the gap or marking the timestep absent; it is never fatal
// to the whole run.
type InsufficientDataError struct {
	StationID string
	Timestep  time.Time
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for station %s at %s",
		e.StationID, e.Timestep.Format(time.RFC3339))
}
