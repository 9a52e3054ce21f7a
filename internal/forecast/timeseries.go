package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
)

// HistorySource serves stored observation history for a buoy. Implemented by
// the observation stores.
type HistorySource interface {
	History(ctx context.Context, buoyID string, since time.Time) ([]domain.Observation, error)
}

// timeseriesMetrics names the exported metric keys, their display names, and
// their SI units, in artifact order.
var timeseriesMetrics = []struct {
	key   string
	name  string
	unit  string
	value func(domain.Observation) *float64
}{
	{"water_level", "Water Level", "m", func(o domain.Observation) *float64 { return o.WaterLevel }},
	{"wind_speed", "Wind Speed", "m/s", func(o domain.Observation) *float64 { return o.WindSpeed }},
	{"wind_direction", "Wind Direction", "°", func(o domain.Observation) *float64 { return o.WindDirection }},
	{"barometric_pressure", "Barometric Pressure", "hPa", func(o domain.Observation) *float64 { return o.Pressure }},
	{"wave_height", "Significant Wave Height", "m", func(o domain.Observation) *float64 { return o.WaveHeight }},
}

// BuildTimeseries assembles the per-buoy observation-history artifact over
// the trailing window. Sub-hourly feeds are thinned to one point per hour
// (the newest in each hour); buoys with nothing stored in the window are
// omitted. A failed history lookup skips that buoy rather than failing the
// artifact.
func BuildTimeseries(ctx context.Context, src HistorySource, reg *registry.Registry,
	window time.Duration, logger *slog.Logger) domain.BuoyTimeseries {

	now := domain.Now()
	out := domain.BuoyTimeseries{
		GeneratedAt: now,
		WindowHours: int(window.Hours()),
		Buoys:       make(map[string]domain.BuoySeries),
	}

	for _, buoyID := range reg.BuoyIDs() {
		history, err := src.History(ctx, buoyID, now.Add(-window))
		if err != nil {
			logger.Warn("observation history lookup failed, omitting buoy from timeseries",
				"buoy_id", buoyID, "error", err)
			continue
		}
		history = thinHourly(history)

		series := domain.BuoySeries{
			Name:    reg.BuoyName(buoyID),
			Metrics: make(map[string]domain.MetricSeries, len(timeseriesMetrics)),
		}
		for _, m := range timeseriesMetrics {
			var points []domain.MetricPoint
			for _, obs := range history {
				if v := m.value(obs); v != nil {
					points = append(points, domain.MetricPoint{Timestamp: obs.Timestamp, Value: *v})
				}
			}
			if len(points) == 0 {
				continue
			}
			series.Metrics[m.key] = domain.MetricSeries{Name: m.name, Unit: m.unit, Points: points}
		}
		if len(series.Metrics) > 0 {
			out.Buoys[buoyID] = series
		}
	}
	return out
}

// thinHourly keeps at most one observation per hour: the newest in each hour
// bucket. Hourly feeds pass through unchanged; ten-minute feeds reduce to
// their top-of-hour cadence.
func thinHourly(history []domain.Observation) []domain.Observation {
	out := history[:0]
	for _, obs := range history {
		bucket := obs.Timestamp.Truncate(time.Hour)
		if len(out) > 0 && out[len(out)-1].Timestamp.Truncate(time.Hour).Equal(bucket) {
			out[len(out)-1] = obs
			continue
		}
		out = append(out, obs)
	}
	return out
}
