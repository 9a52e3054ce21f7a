package forecast_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/forecast"
)

// fakeHistory serves canned observation history, filtered by since like a
// real store.
type fakeHistory struct {
	obs  map[string][]domain.Observation
	fail map[string]bool
}

func (h *fakeHistory) History(_ context.Context, buoyID string, since time.Time) ([]domain.Observation, error) {
	if h.fail[buoyID] {
		return nil, errors.New("store unavailable")
	}
	var out []domain.Observation
	for _, o := range h.obs[buoyID] {
		if !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func obsWith(buoyID string, ts time.Time, pressure, wind *float64) domain.Observation {
	return domain.Observation{BuoyID: buoyID, Timestamp: ts, Pressure: pressure, WindSpeed: wind}
}

func TestBuildTimeseries_GroupsByMetric(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	pressure, wind := 1004.0, 8.2
	src := &fakeHistory{obs: map[string][]domain.Observation{
		"4600304": {
			obsWith("4600304", t0.Add(-3*time.Hour), &pressure, nil),
			obsWith("4600304", t0.Add(-2*time.Hour), &pressure, &wind),
		},
	}}

	ts := forecast.BuildTimeseries(context.Background(), src, loadTestRegistry(t), 24*time.Hour, quietLogger())

	assert.Equal(t, t0, ts.GeneratedAt)
	assert.Equal(t, 24, ts.WindowHours)
	require.Contains(t, ts.Buoys, "4600304")
	series := ts.Buoys["4600304"]
	assert.Equal(t, "English Bay", series.Name)

	require.Contains(t, series.Metrics, "barometric_pressure")
	p := series.Metrics["barometric_pressure"]
	assert.Equal(t, "Barometric Pressure", p.Name)
	assert.Equal(t, "hPa", p.Unit)
	require.Len(t, p.Points, 2)
	assert.Equal(t, t0.Add(-3*time.Hour), p.Points[0].Timestamp)
	assert.InDelta(t, 1004.0, p.Points[0].Value, 1e-9)

	// Wind only has the one observation that reported it.
	require.Contains(t, series.Metrics, "wind_speed")
	w := series.Metrics["wind_speed"]
	assert.Equal(t, "m/s", w.Unit)
	require.Len(t, w.Points, 1)
	assert.InDelta(t, 8.2, w.Points[0].Value, 1e-9)

	// Metrics never reported in the window are absent, not empty.
	assert.NotContains(t, series.Metrics, "wave_height")
}

func TestBuildTimeseries_WindowCutoff(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	pressure := 1001.0
	src := &fakeHistory{obs: map[string][]domain.Observation{
		"4600304": {
			obsWith("4600304", t0.Add(-25*time.Hour), &pressure, nil),
			obsWith("4600304", t0.Add(-23*time.Hour), &pressure, nil),
		},
	}}

	ts := forecast.BuildTimeseries(context.Background(), src, loadTestRegistry(t), 24*time.Hour, quietLogger())

	points := ts.Buoys["4600304"].Metrics["barometric_pressure"].Points
	require.Len(t, points, 1)
	assert.Equal(t, t0.Add(-23*time.Hour), points[0].Timestamp)
}

func TestBuildTimeseries_ThinsSubHourlyFeeds(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	// Ten-minute cadence across two hours reduces to one point per hour,
	// the newest in each.
	var obs []domain.Observation
	base := t0.Add(-2 * time.Hour)
	for i := 0; i < 12; i++ {
		v := 1000.0 + float64(i)
		obs = append(obs, obsWith("4600304", base.Add(time.Duration(i)*10*time.Minute), &v, nil))
	}
	src := &fakeHistory{obs: map[string][]domain.Observation{"4600304": obs}}

	ts := forecast.BuildTimeseries(context.Background(), src, loadTestRegistry(t), 24*time.Hour, quietLogger())

	points := ts.Buoys["4600304"].Metrics["barometric_pressure"].Points
	require.Len(t, points, 2)
	assert.Equal(t, base.Add(50*time.Minute), points[0].Timestamp)
	assert.InDelta(t, 1005.0, points[0].Value, 1e-9)
	assert.Equal(t, base.Add(110*time.Minute), points[1].Timestamp)
	assert.InDelta(t, 1011.0, points[1].Value, 1e-9)
}

func TestBuildTimeseries_EmptyBuoysOmitted(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	pressure := 1002.0
	src := &fakeHistory{obs: map[string][]domain.Observation{
		"4600146": {obsWith("4600146", t0.Add(-time.Hour), &pressure, nil)},
	}}

	ts := forecast.BuildTimeseries(context.Background(), src, loadTestRegistry(t), 24*time.Hour, quietLogger())

	assert.Contains(t, ts.Buoys, "4600146")
	assert.NotContains(t, ts.Buoys, "4600304")
	assert.NotContains(t, ts.Buoys, "4600303")
}

func TestBuildTimeseries_LookupFailureSkipsBuoy(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	pressure := 1002.0
	src := &fakeHistory{
		obs: map[string][]domain.Observation{
			"4600304": {obsWith("4600304", t0.Add(-time.Hour), &pressure, nil)},
			"4600146": {obsWith("4600146", t0.Add(-time.Hour), &pressure, nil)},
		},
		fail: map[string]bool{"4600146": true},
	}

	ts := forecast.BuildTimeseries(context.Background(), src, loadTestRegistry(t), 24*time.Hour, quietLogger())

	assert.Contains(t, ts.Buoys, "4600304")
	assert.NotContains(t, ts.Buoys, "4600146")
}
