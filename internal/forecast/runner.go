package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
	"github.com/couchcryptid/storm-surge-forecast/internal/surge"
)

// Collector supplies classified buoy input for a run. Implemented by the
// supervisor; substituted in tests.
type Collector interface {
	Collect(ctx context.Context, buoyIDs []string) map[string]domain.BuoyStatus
}

// Sink receives the finished artifacts of a run: the JSON exporter, the
// Kafka publisher, and the HTTP server's latest-artifact holder all
// implement it.
type Sink interface {
	PublishForecast(ctx context.Context, f domain.Forecast) error
	PublishBuoyData(ctx context.Context, d domain.BuoyData) error
	PublishTimeseries(ctx context.Context, ts domain.BuoyTimeseries) error
}

// Runner executes forecast generation runs: collect buoy input, model each
// station on a bounded worker pool, assemble, and publish.
type Runner struct {
	reg       *registry.Registry
	collector Collector
	model     *surge.Model
	assembler *Assembler
	history   HistorySource
	sinks     []Sink
	logger    *slog.Logger
	metrics   *observability.Metrics

	workers  int
	interval time.Duration
	window   time.Duration
	ready    atomic.Bool
}

// NewRunner wires a Runner. workers bounds per-station parallelism; interval
// is the period between run starts; window is the trailing span of the
// observation-history artifact.
func NewRunner(reg *registry.Registry, collector Collector, model *surge.Model, assembler *Assembler,
	history HistorySource, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics,
	workers int, interval, window time.Duration) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		reg:       reg,
		collector: collector,
		model:     model,
		assembler: assembler,
		history:   history,
		sinks:     sinks,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
		interval:  interval,
		window:    window,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no forecast generated yet")
	}
	return nil
}

// Run executes runs on the configured interval until the context is
// cancelled. The first run starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("forecast runner started",
		"interval", r.interval, "workers", r.workers, "stations", len(r.reg.Stations()))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("forecast runner stopping", "reason", ctx.Err())
				return nil
			}
			r.logger.Error("forecast run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("forecast runner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single forecast generation run. A station's series is
// committed only when fully computed; cancellation mid-run abandons the
// whole artifact rather than publishing a partial one.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()
	r.metrics.RunActive.Set(1)
	defer r.metrics.RunActive.Set(0)

	statuses := r.collector.Collect(ctx, r.reg.BuoyIDs())
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stations := r.reg.Stations()
	series, err := r.computeStations(ctx, stations, statuses)
	if err != nil {
		return err
	}

	params := r.model.Params()
	f := Assemble(series, int(params.Horizon.Hours()), int(params.Step.Minutes()))
	buoyData := BuildBuoyData(statuses, r.reg)
	timeseries := BuildTimeseries(ctx, r.history, r.reg, r.window, r.logger)

	for _, sink := range r.sinks {
		if err := sink.PublishBuoyData(ctx, buoyData); err != nil {
			// One sink failing must not withhold the artifact from the rest.
			r.logger.Error("publish buoy data failed", "error", err)
		}
		if err := sink.PublishTimeseries(ctx, timeseries); err != nil {
			r.logger.Error("publish timeseries failed", "error", err)
		}
		if err := sink.PublishForecast(ctx, f); err != nil {
			r.logger.Error("publish forecast failed", "error", err)
		}
	}

	r.countGaps(f)
	r.metrics.ForecastRuns.Inc()
	r.metrics.ForecastRunDuration.Observe(time.Since(start).Seconds())
	r.ready.Store(true)

	r.logger.Info("forecast run complete",
		"stations", len(f.Stations), "duration", time.Since(start))
	return nil
}

// computeStations models every station on a bounded worker pool. Results
// keep registry order. Returns an error only on cancellation; a station
// whose buoys are all missing still yields a series of absent timesteps.
func (r *Runner) computeStations(ctx context.Context, stations []registry.Station,
	statuses map[string]domain.BuoyStatus) ([]domain.StationForecast, error) {

	now := domain.Now()
	results := make([]domain.StationForecast, len(stations))
	committed := make([]bool, len(stations))

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)
	for i := range stations {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			st := stations[idx]
			steps := r.model.PredictSeries(st, statuses, now)
			if ctx.Err() != nil {
				return // abandon without committing a partial series
			}
			results[idx] = r.assembler.AssembleStation(st, steps)
			committed[idx] = true
			r.metrics.StationsForecast.Inc()
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	for i, ok := range committed {
		if !ok {
			return nil, fmt.Errorf("station %s: series not computed", stations[i].ID)
		}
	}
	return results, nil
}

func (r *Runner) countGaps(f domain.Forecast) {
	for _, st := range f.Stations {
		for _, p := range st.Predictions {
			switch p.Status {
			case domain.StatusInterpolated:
				r.metrics.TimestepsInterpolated.Inc()
			case domain.StatusAbsent:
				r.metrics.TimestepsAbsent.Inc()
			}
		}
	}
}
