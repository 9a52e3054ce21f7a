package forecast_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/forecast"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
	"github.com/couchcryptid/storm-surge-forecast/internal/surge"
)

const testRegistry = `
stations:
  - id: point_atkinson
    name: Point Atkinson
    lat: 49.337
    lon: -123.253
    datum_offset_m: 3.09
    shore_bearing_deg: 240
    buoys:
      - id: "4600304"
        name: English Bay
        weight: 0.6
      - id: "4600146"
        name: Halibut Bank
        weight: 0.4
    tide:
      mean_level_m: 3.05
      constituents:
        - { name: M2, amplitude_m: 0.918, phase_deg: 31.0 }
  - id: crescent_pile
    name: Crescent Pile
    lat: 49.0122
    lon: -122.9411
    datum_offset_m: 2.84
    shore_bearing_deg: 215
    buoys:
      - id: "4600303"
        weight: 1.0
`

func loadTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o644))
	reg, err := registry.Load(path)
	require.NoError(t, err)
	return reg
}

// fixedCollector returns the same classified statuses for every run.
type fixedCollector struct {
	statuses map[string]domain.BuoyStatus
}

func (c *fixedCollector) Collect(_ context.Context, buoyIDs []string) map[string]domain.BuoyStatus {
	out := make(map[string]domain.BuoyStatus, len(buoyIDs))
	for _, id := range buoyIDs {
		if st, ok := c.statuses[id]; ok {
			out[id] = st
		} else {
			out[id] = domain.BuoyStatus{BuoyID: id, Freshness: domain.Missing}
		}
	}
	return out
}

// captureSink records every published artifact.
type captureSink struct {
	mu         sync.Mutex
	forecasts  []domain.Forecast
	buoyData   []domain.BuoyData
	timeseries []domain.BuoyTimeseries
	fail       bool
}

func (s *captureSink) PublishForecast(_ context.Context, f domain.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.forecasts = append(s.forecasts, f)
	return nil
}

func (s *captureSink) PublishBuoyData(_ context.Context, d domain.BuoyData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.buoyData = append(s.buoyData, d)
	return nil
}

func (s *captureSink) PublishTimeseries(_ context.Context, ts domain.BuoyTimeseries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.timeseries = append(s.timeseries, ts)
	return nil
}

func freshStatus(buoyID string, ts time.Time, pressure float64) domain.BuoyStatus {
	return domain.BuoyStatus{
		BuoyID:    buoyID,
		Freshness: domain.Fresh,
		Observations: []domain.Observation{{
			BuoyID:    buoyID,
			Timestamp: ts,
			Pressure:  &pressure,
		}},
	}
}

func newTestRunner(t *testing.T, collector forecast.Collector, sinks ...forecast.Sink) *forecast.Runner {
	t.Helper()
	return newHistoryRunner(t, collector, &fakeHistory{}, sinks...)
}

func newHistoryRunner(t *testing.T, collector forecast.Collector, history forecast.HistorySource, sinks ...forecast.Sink) *forecast.Runner {
	t.Helper()
	return forecast.NewRunner(
		loadTestRegistry(t),
		collector,
		surge.New(surge.DefaultParams()),
		forecast.NewAssembler(2),
		history,
		sinks,
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		observability.NewMetricsForTesting(),
		2,
		10*time.Minute,
		24*time.Hour,
	)
}

func TestRunOnce_PublishesToAllSinks(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	collector := &fixedCollector{statuses: map[string]domain.BuoyStatus{
		"4600304": freshStatus("4600304", t0.Add(-time.Hour), 1001.0),
		"4600146": freshStatus("4600146", t0.Add(-time.Hour), 1003.0),
		"4600303": freshStatus("4600303", t0.Add(-time.Hour), 1002.5),
	}}
	sink1 := &captureSink{}
	sink2 := &captureSink{}

	r := newTestRunner(t, collector, sink1, sink2)
	require.NoError(t, r.RunOnce(context.Background()))

	for _, sink := range []*captureSink{sink1, sink2} {
		require.Len(t, sink.forecasts, 1)
		require.Len(t, sink.buoyData, 1)
		require.Len(t, sink.timeseries, 1)
	}

	fc := sink1.forecasts[0]
	assert.Equal(t, 48, fc.HorizonHours)
	assert.Equal(t, 60, fc.TimestepMinutes)
	assert.Equal(t, "meters", fc.Unit)
	require.Len(t, fc.Stations, 2)
	// Registry order is preserved.
	assert.Equal(t, "point_atkinson", fc.Stations[0].StationID)
	assert.Equal(t, "crescent_pile", fc.Stations[1].StationID)
	for _, st := range fc.Stations {
		assert.Len(t, st.Predictions, 48)
	}
}

func TestRunOnce_FailingSinkDoesNotBlockOthers(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	collector := &fixedCollector{statuses: map[string]domain.BuoyStatus{
		"4600304": freshStatus("4600304", t0.Add(-time.Hour), 1001.0),
		"4600303": freshStatus("4600303", t0.Add(-time.Hour), 1002.5),
	}}
	broken := &captureSink{fail: true}
	working := &captureSink{}

	r := newTestRunner(t, collector, broken, working)
	require.NoError(t, r.RunOnce(context.Background()))

	assert.Empty(t, broken.forecasts)
	require.Len(t, working.forecasts, 1)
	require.Len(t, working.buoyData, 1)
}

func TestRunOnce_PublishesStoredHistory(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	pressure := 1001.5
	history := &fakeHistory{obs: map[string][]domain.Observation{
		"4600304": {
			{BuoyID: "4600304", Timestamp: t0.Add(-2 * time.Hour), Pressure: &pressure},
			{BuoyID: "4600304", Timestamp: t0.Add(-time.Hour), Pressure: &pressure},
		},
	}}
	collector := &fixedCollector{statuses: map[string]domain.BuoyStatus{
		"4600304": freshStatus("4600304", t0.Add(-time.Hour), pressure),
	}}
	sink := &captureSink{}

	r := newHistoryRunner(t, collector, history, sink)
	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, sink.timeseries, 1)
	ts := sink.timeseries[0]
	assert.Equal(t, t0, ts.GeneratedAt)
	assert.Equal(t, 24, ts.WindowHours)
	require.Contains(t, ts.Buoys, "4600304")
	assert.Equal(t, "English Bay", ts.Buoys["4600304"].Name)
	require.Contains(t, ts.Buoys["4600304"].Metrics, "barometric_pressure")
	assert.Len(t, ts.Buoys["4600304"].Metrics["barometric_pressure"].Points, 2)
	// Buoys with nothing stored in the window are omitted entirely.
	assert.NotContains(t, ts.Buoys, "4600303")
}

func TestRunOnce_Deterministic(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	collector := &fixedCollector{statuses: map[string]domain.BuoyStatus{
		"4600304": freshStatus("4600304", t0.Add(-time.Hour), 998.0),
		"4600146": freshStatus("4600146", t0.Add(-time.Hour), 999.5),
		"4600303": freshStatus("4600303", t0.Add(-time.Hour), 1000.0),
	}}
	sink := &captureSink{}

	r := newTestRunner(t, collector, sink)
	require.NoError(t, r.RunOnce(context.Background()))
	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, sink.forecasts, 2)
	if diff := cmp.Diff(sink.forecasts[0], sink.forecasts[1]); diff != "" {
		t.Errorf("same clock and input must produce identical forecasts (-first +second):\n%s", diff)
	}
}

func TestRunOnce_AllBuoysMissingYieldsAbsentSeries(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	sink := &captureSink{}
	r := newTestRunner(t, &fixedCollector{}, sink)
	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, sink.forecasts, 1)
	for _, st := range sink.forecasts[0].Stations {
		require.Len(t, st.Predictions, 48)
		for _, p := range st.Predictions {
			assert.Equal(t, domain.StatusAbsent, p.Status)
		}
	}
	for _, snap := range sink.buoyData[0].Buoys {
		assert.Equal(t, domain.Missing, snap.Freshness)
	}
}

func TestRunOnce_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &captureSink{}
	r := newTestRunner(t, &fixedCollector{}, sink)
	err := r.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.forecasts, "cancelled run publishes nothing")
}

func TestCheckReadiness(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	r := newTestRunner(t, &fixedCollector{}, &captureSink{})
	require.Error(t, r.CheckReadiness(context.Background()))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(t0))
	defer domain.SetClock(nil)

	sink := &captureSink{}
	r := newTestRunner(t, &fixedCollector{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// The first run starts immediately; give it a moment, then stop.
	require.Eventually(t, func() bool {
		return r.CheckReadiness(context.Background()) == nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.NotEmpty(t, sink.forecasts)
}
