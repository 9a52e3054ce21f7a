// Package httpapi exposes health, readiness, and metrics endpoints plus
// read-only views of the latest run artifacts.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes /healthz, /readyz, /metrics, /v1/forecast, /v1/buoys, and
// /v1/timeseries.
// It doubles as a forecast.Sink: each run publishes its artifacts here and
// the handlers serve whatever run was published last.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	forecast   atomic.Pointer[domain.Forecast]
	buoyData   atomic.Pointer[domain.BuoyData]
	timeseries atomic.Pointer[domain.BuoyTimeseries]
}

// NewServer creates the HTTP server.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/forecast", s.handleForecast)
	mux.HandleFunc("GET /v1/buoys", s.handleBuoys)
	mux.HandleFunc("GET /v1/timeseries", s.handleTimeseries)

	return s
}

// PublishForecast stores the forecast for the /v1/forecast handler.
func (s *Server) PublishForecast(_ context.Context, f domain.Forecast) error {
	s.forecast.Store(&f)
	return nil
}

// PublishBuoyData stores the snapshot for the /v1/buoys handler.
func (s *Server) PublishBuoyData(_ context.Context, d domain.BuoyData) error {
	s.buoyData.Store(&d)
	return nil
}

// PublishTimeseries stores the history for the /v1/timeseries handler.
func (s *Server) PublishTimeseries(_ context.Context, ts domain.BuoyTimeseries) error {
	s.timeseries.Store(&ts)
	return nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleForecast(w http.ResponseWriter, _ *http.Request) {
	f := s.forecast.Load()
	if f == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no forecast generated yet"})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleBuoys(w http.ResponseWriter, _ *http.Request) {
	d := s.buoyData.Load()
	if d == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no observations collected yet"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleTimeseries(w http.ResponseWriter, _ *http.Request) {
	ts := s.timeseries.Load()
	if ts == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no observations collected yet"})
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
