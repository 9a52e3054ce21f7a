// Package supervisor governs how buoy input reaches the surge model. It
// wraps the external data fetcher with retry/backoff, persists accepted
// observations as last-known-good, and classifies each buoy's best input as
// fresh, stale, or missing so one dead feed degrades confidence instead of
// failing the forecast.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
	"github.com/couchcryptid/storm-surge-forecast/internal/observability"
)

// Fetcher retrieves the latest raw records for a buoy from the external
// collaborator. Implementations are expected to be safe for concurrent use.
type Fetcher interface {
	FetchLatest(ctx context.Context, buoyID string) ([]domain.RawBuoyRecord, error)
}

// Store persists accepted observations so a buoy whose feed is down can fall
// back to its last-known-good reading across runs (and restarts, for the
// Postgres implementation).
type Store interface {
	Put(ctx context.Context, obs []domain.Observation) error
	Latest(ctx context.Context, buoyID string) (domain.Observation, bool, error)
}

// Config holds the supervisor's retry and staleness policy.
type Config struct {
	// StalenessWindow separates fresh from stale input.
	StalenessWindow time.Duration
	// MaxObservationAge is the hard cutoff beyond which even a cached
	// last-known-good observation is discarded as missing.
	MaxObservationAge time.Duration
	// FetchTimeout bounds a single fetch call. Distinct from the staleness
	// window: the timeout governs the call, staleness governs the value.
	FetchTimeout time.Duration
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubling per retry.
	RetryBackoff time.Duration
	// MaxConcurrent bounds in-flight fetches across buoys.
	MaxConcurrent int
}

// DefaultConfig returns the operational supervisor policy.
func DefaultConfig() Config {
	return Config{
		StalenessWindow:   3 * time.Hour,
		MaxObservationAge: 12 * time.Hour,
		FetchTimeout:      10 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		MaxConcurrent:     4,
	}
}

// Supervisor coordinates fetching and freshness classification for a set of
// buoys.
type Supervisor struct {
	fetcher Fetcher
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Supervisor. Pass a fake clock in tests for deterministic
// backoff and staleness behavior.
func New(fetcher Fetcher, store Store, cfg Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Supervisor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Supervisor{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Collect fetches and classifies observations for every buoy ID, with
// bounded concurrency. The result always contains an entry per requested
// buoy; total failure yields a Missing entry rather than an error, because
// partial results are valid results.
func (s *Supervisor) Collect(ctx context.Context, buoyIDs []string) map[string]domain.BuoyStatus {
	statuses := make(map[string]domain.BuoyStatus, len(buoyIDs))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.cfg.MaxConcurrent)
	)
	for _, id := range buoyIDs {
		wg.Add(1)
		go func(buoyID string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			status := s.collectOne(ctx, buoyID)
			mu.Lock()
			statuses[buoyID] = status
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	// Buoys skipped by cancellation still get an explicit Missing entry.
	for _, id := range buoyIDs {
		if _, ok := statuses[id]; !ok {
			statuses[id] = domain.BuoyStatus{BuoyID: id, Freshness: domain.Missing}
		}
	}

	s.recordFreshness(statuses)
	return statuses
}

// collectOne runs the fetch-retry-fallback policy for a single buoy.
func (s *Supervisor) collectOne(ctx context.Context, buoyID string) domain.BuoyStatus {
	records, err := s.fetchWithRetry(ctx, buoyID)
	if err != nil {
		s.logger.Warn("fetch failed after retries, falling back to last known good",
			"buoy_id", buoyID, "error", err)
		s.metrics.FetchFailures.Inc()
		return s.fallback(ctx, buoyID)
	}

	byBuoy, malformed := domain.NormalizeRecords(records)
	for _, m := range malformed {
		s.logger.Warn("dropping malformed record", "buoy_id", buoyID, "error", m)
		s.metrics.MalformedRecords.Inc()
	}

	observations := byBuoy[buoyID]
	if len(observations) == 0 {
		// Fetch succeeded but produced nothing usable for this buoy.
		return s.fallback(ctx, buoyID)
	}

	if err := s.store.Put(ctx, observations); err != nil {
		// Store failures must not block the forecast; the data is in hand.
		s.logger.Warn("persist observations failed", "buoy_id", buoyID, "error", err)
	}

	newest := observations[len(observations)-1]
	freshness := s.classify(newest.Timestamp)
	if freshness == domain.Missing {
		return domain.BuoyStatus{BuoyID: buoyID, Freshness: domain.Missing}
	}
	return domain.BuoyStatus{BuoyID: buoyID, Freshness: freshness, Observations: observations}
}

// fallback serves the most recent previously accepted observation, marked
// stale, unless it exceeds the hard maximum age.
func (s *Supervisor) fallback(ctx context.Context, buoyID string) domain.BuoyStatus {
	obs, ok, err := s.store.Latest(ctx, buoyID)
	if err != nil {
		s.logger.Warn("last known good lookup failed", "buoy_id", buoyID, "error", err)
		return domain.BuoyStatus{BuoyID: buoyID, Freshness: domain.Missing}
	}
	if !ok {
		return domain.BuoyStatus{BuoyID: buoyID, Freshness: domain.Missing}
	}
	if s.clock.Now().UTC().Sub(obs.Timestamp) > s.cfg.MaxObservationAge {
		return domain.BuoyStatus{BuoyID: buoyID, Freshness: domain.Missing}
	}
	return domain.BuoyStatus{
		BuoyID:       buoyID,
		Freshness:    domain.Stale,
		Observations: []domain.Observation{obs},
	}
}

// fetchWithRetry attempts the fetch up to 1+MaxRetries times with doubling
// backoff, honoring context cancellation between attempts.
func (s *Supervisor) fetchWithRetry(ctx context.Context, buoyID string) ([]domain.RawBuoyRecord, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.FetchRetries.Inc()
			if !s.sleep(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		records, err := s.fetcher.FetchLatest(fetchCtx, buoyID)
		cancel()
		if err == nil {
			return records, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Debug("fetch attempt failed", "buoy_id", buoyID, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (s *Supervisor) classify(obsTime time.Time) domain.Freshness {
	age := s.clock.Now().UTC().Sub(obsTime)
	switch {
	case age <= s.cfg.StalenessWindow:
		return domain.Fresh
	case age <= s.cfg.MaxObservationAge:
		return domain.Stale
	default:
		return domain.Missing
	}
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

func (s *Supervisor) recordFreshness(statuses map[string]domain.BuoyStatus) {
	counts := map[domain.Freshness]int{}
	for _, st := range statuses {
		counts[st.Freshness]++
	}
	for _, f := range []domain.Freshness{domain.Fresh, domain.Stale, domain.Missing} {
		s.metrics.BuoyFreshness.WithLabelValues(string(f)).Set(float64(counts[f]))
	}
}
