package aggregator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingCloser struct {
	calls  atomic.Int32
	maxAge atomic.Int64
}

func (c *countingCloser) CloseStale(_ context.Context, maxAge time.Duration) (int, error) {
	c.calls.Add(1)
	c.maxAge.Store(int64(maxAge))
	return 1, nil
}

func TestScheduler_InitialForcedPass(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 3)
	closer := &countingCloser{}
	s := NewScheduler(f.agg, closer, SchedulerOptions{StaleAge: 12 * time.Hour}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		return s.Status().LastPass != nil
	}, time.Second, 10*time.Millisecond)

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "5m0s", st.Interval)
	assert.Equal(t, "1h0m0s", st.ForceInterval)
	require.NotNil(t, st.LastForcedRun)
	require.NotNil(t, st.NextRun)
	assert.Equal(t, t0.Add(DefaultInterval), *st.NextRun)
	assert.Equal(t, t0.Add(DefaultForceInterval), *st.NextForcedRun)
	assert.Equal(t, 1, st.LastPass.Updated)
	assert.True(t, st.LastPass.Forced)
	assert.Equal(t, 1, st.StaleClosed)
	assert.Equal(t, int32(1), closer.calls.Load())
	assert.Equal(t, int64(12*time.Hour), closer.maxAge.Load())

	require.NoError(t, s.Stop())
	st = s.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.NextRun)
	require.NotNil(t, st.LastRun)
}

func TestScheduler_StopIdempotentAndRestart(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	s := NewScheduler(f.agg, nil, SchedulerOptions{}, zap.NewNop())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	require.NoError(t, s.Stop())
}

func TestScheduler_StopsWhenParentCancelled(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	s := NewScheduler(f.agg, nil, SchedulerOptions{Interval: 10 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	require.NoError(t, s.Stop())
}

func TestScheduler_ForceUpdate(t *testing.T) {
	f := newAggFixture(24*time.Hour, stubRateSource{})
	ctx := context.Background()
	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 3)
	seedCompleted(t, f.store, "E2", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 4)
	s := NewScheduler(f.agg, nil, SchedulerOptions{}, zap.NewNop())

	res, err := s.ForceUpdate(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	cs, err := f.store.GetSummary(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, 4.0, cs.DailyExposure)

	res, err = s.ForceUpdate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.NotNil(t, s.Status().LastForcedRun)
	assert.False(t, s.Status().Running)
}
