package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

// historyRetention bounds how far back the in-memory store keeps
// observations, relative to each buoy's newest reading. Matches the
// observation-history artifact window so the export is complete without the
// store growing unbounded.
const historyRetention = 24 * time.Hour

// Memory is an in-process observation store. Last-known-good fallback and
// history then only span the process lifetime, which is acceptable for
// deployments without a database.
type Memory struct {
	mu      sync.RWMutex
	history map[string][]domain.Observation // ascending by timestamp
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{history: make(map[string][]domain.Observation)}
}

// Put inserts observations, keeping each buoy's history ordered and pruned
// to the retention window. A re-published reading with an existing timestamp
// replaces the stored one.
func (m *Memory) Put(_ context.Context, obs []domain.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[string]bool)
	for _, o := range obs {
		seq := m.history[o.BuoyID]
		if i := sort.Search(len(seq), func(i int) bool {
			return !seq[i].Timestamp.Before(o.Timestamp)
		}); i < len(seq) && seq[i].Timestamp.Equal(o.Timestamp) {
			seq[i] = o
		} else {
			seq = append(seq, domain.Observation{})
			copy(seq[i+1:], seq[i:])
			seq[i] = o
		}
		m.history[o.BuoyID] = seq
		touched[o.BuoyID] = true
	}
	for id := range touched {
		m.history[id] = prune(m.history[id])
	}
	return nil
}

// prune drops observations older than the retention window relative to the
// buoy's newest reading.
func prune(seq []domain.Observation) []domain.Observation {
	if len(seq) == 0 {
		return seq
	}
	cutoff := seq[len(seq)-1].Timestamp.Add(-historyRetention)
	i := sort.Search(len(seq), func(i int) bool {
		return !seq[i].Timestamp.Before(cutoff)
	})
	return seq[i:]
}

// Latest returns the newest stored observation for a buoy.
func (m *Memory) Latest(_ context.Context, buoyID string) (domain.Observation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq := m.history[buoyID]
	if len(seq) == 0 {
		return domain.Observation{}, false, nil
	}
	return seq[len(seq)-1], true, nil
}

// History returns the buoy's stored observations at or after since, in
// timestamp-ascending order.
func (m *Memory) History(_ context.Context, buoyID string, since time.Time) ([]domain.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq := m.history[buoyID]
	i := sort.Search(len(seq), func(i int) bool {
		return !seq[i].Timestamp.Before(since)
	})
	out := make([]domain.Observation, len(seq)-i)
	copy(out, seq[i:])
	return out, nil
}
