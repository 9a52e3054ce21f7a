package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast service.
type Metrics struct {
	ForecastRuns        prometheus.Counter
	ForecastRunDuration prometheus.Histogram
	RunActive           prometheus.Gauge
	StationsForecast    prometheus.Counter

	// Assembler gap handling.
	TimestepsInterpolated prometheus.Counter
	TimestepsAbsent       prometheus.Counter

	// Supervisor fetch behavior.
	FetchRetries     prometheus.Counter
	FetchFailures    prometheus.Counter
	MalformedRecords prometheus.Counter
	BuoyFreshness    *prometheus.GaugeVec // label: state={fresh,stale,missing}

	RegistryReloads   prometheus.Counter
	ArtifactsWritten  prometheus.Counter
	MessagesPublished prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ForecastRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "runs_total",
			Help:      "Total completed forecast generation runs.",
		}),
		ForecastRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surge_forecast",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-model-assemble-export run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surge_forecast",
			Name:      "run_active",
			Help:      "1 while a forecast run is in flight, 0 otherwise.",
		}),
		StationsForecast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "stations_total",
			Help:      "Total per-station forecast series produced.",
		}),
		TimestepsInterpolated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "timesteps_interpolated_total",
			Help:      "Timesteps filled by linear interpolation between valid neighbours.",
		}),
		TimestepsAbsent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "timesteps_absent_total",
			Help:      "Timesteps left explicitly absent after gap handling.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "fetch_retries_total",
			Help:      "Buoy fetch retry attempts.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "fetch_failures_total",
			Help:      "Buoy fetches that exhausted all retries.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "malformed_records_total",
			Help:      "Raw records dropped for missing or unparseable required fields.",
		}),
		BuoyFreshness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "surge_forecast",
			Name:      "buoy_freshness",
			Help:      "Buoys per freshness state as of the latest run.",
		}, []string{"state"}),
		RegistryReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "registry_reloads_total",
			Help:      "Successful station registry reloads.",
		}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "artifacts_written_total",
			Help:      "Exchange-format artifacts written to disk.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surge_forecast",
			Name:      "messages_published_total",
			Help:      "Messages published to the sink topics.",
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ForecastRuns,
		m.ForecastRunDuration,
		m.RunActive,
		m.StationsForecast,
		m.TimestepsInterpolated,
		m.TimestepsAbsent,
		m.FetchRetries,
		m.FetchFailures,
		m.MalformedRecords,
		m.BuoyFreshness,
		m.RegistryReloads,
		m.ArtifactsWritten,
		m.MessagesPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
