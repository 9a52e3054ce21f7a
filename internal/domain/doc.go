// Package domain models Strait of Georgia buoy observations and the
// storm-surge forecast artifacts built from them.
//
// # Data Source
//
// Observations originate from Environment and Climate Change Canada (ECCC)
// moored buoys, published as SWOB-ML point-observation XML on the MSC
// Datamart. The collector flattens each report into a JSON record with one
// value per field plus optional unit labels; this package normalizes those
// records into SI units.
//
// # Conventions
//
// Buoy identifiers:
//
//	WMO IDs, preferring the 7-digit extended form (wmo_id_extnd) over the
//	5-digit synop form when both are present, e.g. "4600304" (English Bay).
//
// Units after normalization:
//
//	wind_speed            m/s   (feed publishes km/h; knots and mph accepted)
//	wind_direction        degrees true, [0, 360)
//	barometric_pressure   hPa   (kPa, Pa and inHg accepted)
//	wave_height           metres, significant wave height
//	water_level           metres above chart datum
//
// Timestamps:
//
//	RFC 3339, always converted to UTC. Within a buoy's stream timestamps are
//	non-decreasing after normalization; the feed re-publishes corrected
//	readings under the same observation time, and the later publication wins.
//
// Quality:
//
//	"verified" for QA-passed reports, everything else "provisional".
//	Provisional data is forecast input like any other; the flag only rides
//	along for consumers.
//
// # Freshness
//
// A buoy's best observation is classified against the forecast run clock:
// fresh inside the staleness window, stale between the window and the hard
// maximum age, missing beyond that. Stale input degrades prediction
// confidence; missing input removes the buoy from the weighted combination
// entirely (see the surge package).
package domain
