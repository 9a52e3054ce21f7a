package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-surge-forecast/internal/adapter/store"
	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

func obsAt(buoyID string, ts time.Time) domain.Observation {
	return domain.Observation{BuoyID: buoyID, Timestamp: ts}
}

func TestMemory_PutAndLatest(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	require.NoError(t, m.Put(ctx, []domain.Observation{
		obsAt("b1", base),
		obsAt("b1", base.Add(time.Hour)),
		obsAt("b2", base),
	}))

	got, ok, err := m.Latest(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), got.Timestamp)
}

func TestMemory_NewestWins(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	require.NoError(t, m.Put(ctx, []domain.Observation{obsAt("b1", base.Add(2*time.Hour))}))
	// An older reading arriving later must not regress the cache.
	require.NoError(t, m.Put(ctx, []domain.Observation{obsAt("b1", base)}))

	got, ok, err := m.Latest(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Hour), got.Timestamp)
}

func TestMemory_UnknownBuoy(t *testing.T) {
	m := store.NewMemory()
	_, ok, err := m.Latest(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_HistoryOrderedAndFiltered(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	// Inserted out of order; History returns ascending.
	require.NoError(t, m.Put(ctx, []domain.Observation{
		obsAt("b1", base.Add(2*time.Hour)),
		obsAt("b1", base),
		obsAt("b1", base.Add(time.Hour)),
		obsAt("b2", base),
	}))

	got, err := m.History(ctx, "b1", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(time.Hour), got[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Hour), got[1].Timestamp)

	all, err := m.History(ctx, "b1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := m.History(ctx, "nope", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_HistorySameTimestampReplaces(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	ts := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	wind1, wind2 := 5.0, 7.5
	require.NoError(t, m.Put(ctx, []domain.Observation{{BuoyID: "b1", Timestamp: ts, WindSpeed: &wind1}}))
	require.NoError(t, m.Put(ctx, []domain.Observation{{BuoyID: "b1", Timestamp: ts, WindSpeed: &wind2}}))

	got, err := m.History(ctx, "b1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].WindSpeed)
	assert.InDelta(t, 7.5, *got[0].WindSpeed, 1e-9)
}

func TestMemory_HistoryPrunedToRetention(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	require.NoError(t, m.Put(ctx, []domain.Observation{
		obsAt("b1", base.Add(-30*time.Hour)),
		obsAt("b1", base.Add(-20*time.Hour)),
		obsAt("b1", base),
	}))

	got, err := m.History(ctx, "b1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2, "readings older than the retention window are dropped")
	assert.Equal(t, base.Add(-20*time.Hour), got[0].Timestamp)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.Put(ctx, []domain.Observation{obsAt("b1", base.Add(time.Duration(n*50+j)*time.Second))})
				_, _, _ = m.Latest(ctx, "b1")
			}
		}(i)
	}
	wg.Wait()

	got, ok, err := m.Latest(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base.Add(399*time.Second), got.Timestamp, "highest timestamp survives")
}
