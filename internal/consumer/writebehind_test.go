package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/cache"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

var t0 = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

// flakyStore fails SaveReading for selected readings or Ping entirely.
type flakyStore struct {
	*repository.MemoryStore
	mu      sync.Mutex
	pingErr error
	failIDs map[string]bool
}

func (f *flakyStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *flakyStore) SaveReading(ctx context.Context, r models.Reading) ([]int64, error) {
	f.mu.Lock()
	fail := f.failIDs[r.ID]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("deadlock detected")
	}
	return f.MemoryStore.SaveReading(ctx, r)
}

func newTestCache() *cache.ReadingCache {
	engine := timeengine.New(time.UTC, timeengine.NewFixedClock(t0))
	return cache.New(cache.DefaultOptions(), engine, zap.NewNop())
}

func addReading(t *testing.T, c *cache.ReadingCache, rate float64) models.Reading {
	t.Helper()
	r, err := c.Add(models.ReadingInput{CPM: 20, AbsorbedDoseRate: rate, TotalAbsorbedDose: 1})
	require.NoError(t, err)
	return r
}

func TestWriteBehind_PersistsUnsaved(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()
	store := repository.NewMemoryStore(func() time.Time { return t0 })
	w := NewWriteBehind(c, store, nil, 0, 0, nil, zap.NewNop())

	saved, failed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, saved+failed)

	for _, rate := range []float64{0.1, 0.2, 0.3} {
		addReading(t, c, rate)
	}
	saved, failed, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.Zero(t, failed)
	assert.Empty(t, c.Unsaved())

	stored, err := store.LatestReadings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	st := w.Stats()
	assert.Equal(t, int64(2), st.Passes)
	assert.Equal(t, int64(3), st.Saved)
	assert.False(t, st.LastPassTime.IsZero())
}

func TestWriteBehind_FailedReadingStaysUnsaved(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(nil), failIDs: map[string]bool{}}
	w := NewWriteBehind(c, store, nil, 0, 0, nil, zap.NewNop())

	ok := addReading(t, c, 0.1)
	bad := addReading(t, c, 0.2)
	store.failIDs[bad.ID] = true

	saved, failed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, failed)

	_, _, err = w.RunOnce(ctx)
	require.NoError(t, err)

	for _, cr := range c.Snapshot() {
		switch cr.ID {
		case ok.ID:
			assert.True(t, cr.Persisted)
		case bad.ID:
			assert.False(t, cr.Persisted)
			assert.Equal(t, 2, cr.SaveAttempts)
		}
	}

	store.failIDs[bad.ID] = false
	saved, failed, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Zero(t, failed)
	assert.Empty(t, c.Unsaved())
}

func TestWriteBehind_StoreDown(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(nil), pingErr: errors.New("connection refused")}
	w := NewWriteBehind(c, store, nil, 0, 0, nil, zap.NewNop())
	addReading(t, c, 0.1)

	_, _, err := w.RunOnce(ctx)
	require.Error(t, err)
	assert.Len(t, c.Unsaved(), 1)
	assert.Equal(t, int64(1), w.Stats().StoreErrors)

	// ingestion is unaffected
	addReading(t, c, 0.2)
	assert.Len(t, c.Unsaved(), 2)
}

func TestWriteBehind_MirrorsAfterPass(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := newTestCache()
	mirror := cache.NewMirror(cache.NewRedisKVStore(client), time.Minute, zap.NewNop())
	w := NewWriteBehind(c, repository.NewMemoryStore(nil), mirror, 0, 0, nil, zap.NewNop())
	r := addReading(t, c, 0.42)

	_, _, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := mirror.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.True(t, mr.Exists(cache.CacheStatsKey))
}

func TestWriteBehind_LastPassUsesInjectedClock(t *testing.T) {
	clock := timeengine.NewFixedClock(t0)
	w := NewWriteBehind(newTestCache(), repository.NewMemoryStore(nil), nil, 0, 0, clock.Now, zap.NewNop())
	assert.True(t, w.Stats().LastPassTime.IsZero())

	_, _, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, w.Stats().LastPassTime.Equal(t0))

	clock.Advance(5 * time.Minute)
	_, _, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, w.Stats().LastPassTime.Equal(t0.Add(5*time.Minute)))
}

func TestWriteBehind_RunStopsOnCancel(t *testing.T) {
	c := newTestCache()
	store := repository.NewMemoryStore(nil)
	w := NewWriteBehind(c, store, nil, 10*time.Millisecond, 20*time.Millisecond, nil, zap.NewNop())
	addReading(t, c, 0.1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(c.Unsaved()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write-behind did not stop")
	}
}
