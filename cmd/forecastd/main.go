package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-surge-forecast/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/storm-surge-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/storm-surge-forecast/internal/adapter/store"
	"github.com/couchcryptid/storm-surge-forecast/internal/adapter/swob"
	"github.com/couchcryptid/storm-surge-forecast/internal/config"
	"github.com/couchcryptid/storm-surge-forecast/internal/exporter"
	"github.com/couchcryptid/storm-surge-forecast/internal/forecast"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
	"github.com/couchcryptid/storm-surge-forecast/internal/registry"
	"github.com/couchcryptid/storm-surge-forecast/internal/supervisor"
	"github.com/couchcryptid/storm-surge-forecast/internal/surge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Error("failed to load station registry", "error", err, "path", cfg.RegistryPath)
		os.Exit(1)
	}
	logger.Info("station registry loaded",
		"stations", len(reg.Stations()), "buoys", len(reg.BuoyIDs()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observation store: Postgres when configured, in-memory otherwise. The
	// same store backs the supervisor's last-known-good fallback and the
	// observation-history artifact.
	var (
		obsStore supervisor.Store
		history  forecast.HistorySource
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open observation store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		obsStore, history = pg, pg
		logger.Info("postgres observation store enabled")
	} else {
		mem := store.NewMemory()
		obsStore, history = mem, mem
		logger.Info("in-memory observation store enabled")
	}

	fetcher := swob.NewClient(cfg.SwobURLTemplate, cfg.FetchTimeout, logger)
	sup := supervisor.New(fetcher, obsStore, supervisor.Config{
		StalenessWindow:   cfg.FreshnessWindow,
		MaxObservationAge: cfg.MaxObservationAge,
		FetchTimeout:      cfg.FetchTimeout,
		MaxRetries:        cfg.FetchRetries,
		RetryBackoff:      cfg.FetchBackoff,
		MaxConcurrent:     cfg.FetchConcurrency,
	}, logger, metrics, clockwork.NewRealClock())

	params := surge.DefaultParams()
	params.StalenessWindow = cfg.FreshnessWindow
	params.Horizon = cfg.ForecastHorizon
	params.Step = cfg.ForecastStep
	params.ConfidenceFloor = cfg.ConfidenceFloor
	model := surge.New(params)

	assembler := forecast.NewAssembler(cfg.InterpMaxGap)

	exp, err := exporter.New(cfg.OutputDir, logger, metrics)
	if err != nil {
		logger.Error("failed to create exporter", "error", err)
		os.Exit(1)
	}

	var sinks []forecast.Sink
	sinks = append(sinks, exp)

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers,
			cfg.KafkaForecastTopic, cfg.KafkaBuoyTopic, cfg.KafkaTimeseriesTopic, logger, metrics)
		sinks = append(sinks, publisher)
		logger.Info("kafka publication enabled",
			"forecast_topic", cfg.KafkaForecastTopic, "buoy_topic", cfg.KafkaBuoyTopic,
			"timeseries_topic", cfg.KafkaTimeseriesTopic)
	} else {
		logger.Info("kafka publication disabled")
	}

	var runner *forecast.Runner
	srv := httpapi.NewServer(cfg.HTTPAddr, readinessFunc(func(ctx context.Context) error {
		if runner == nil {
			return errors.New("runner not started")
		}
		return runner.CheckReadiness(ctx)
	}), logger)
	sinks = append(sinks, srv)

	runner = forecast.NewRunner(reg, sup, model, assembler, history, sinks,
		logger, metrics, cfg.StationWorkers, cfg.RunInterval, cfg.TimeseriesWindow)

	// SIGHUP reloads the station registry atomically.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := reg.Reload(); err != nil {
				logger.Error("registry reload failed, keeping previous snapshot", "error", err)
				continue
			}
			metrics.RegistryReloads.Inc()
			logger.Info("station registry reloaded", "stations", len(reg.Stations()))
		}
	}()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start forecast runner.
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("forecast runner error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readinessFunc adapts a closure to httpapi.ReadinessChecker so the server
// can be constructed before the runner it reports on.
type readinessFunc func(ctx context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }
