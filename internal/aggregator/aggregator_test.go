package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

type stubRateSource struct {
	rate float64
	ok   bool
}

func (s stubRateSource) Latest() (models.Reading, bool) {
	return models.Reading{AbsorbedDoseRate: s.rate}, s.ok
}

// failingStore fails session reads for one employee.
type failingStore struct {
	*repository.MemoryStore
	failFor string
}

func (f *failingStore) EmployeeSessions(ctx context.Context, employeeID string) ([]models.ExposureSession, error) {
	if employeeID == f.failFor {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStore.EmployeeSessions(ctx, employeeID)
}

type aggFixture struct {
	clock *timeengine.FixedClock
	store *repository.MemoryStore
	agg   *Aggregator
}

func newAggFixture(interval time.Duration, rate stubRateSource) *aggFixture {
	clock := timeengine.NewFixedClock(t0)
	engine := timeengine.New(time.UTC, clock)
	store := repository.NewMemoryStore(clock.Now)
	checker := alerting.NewChecker(store, alerting.NopPublisher{}, alerting.DefaultDedupWindow, clock.Now, zap.NewNop())
	return &aggFixture{
		clock: clock,
		store: store,
		agg:   New(store, engine, checker, rate, interval, zap.NewNop()),
	}
}

func seedCompleted(t *testing.T, store repository.SessionRepository, employeeID string, date time.Time, exposure float64) {
	t.Helper()
	ctx := context.Background()
	es := &models.ExposureSession{
		EmployeeID:  employeeID,
		SessionDate: date,
		CheckInTime: date.Add(8 * time.Hour),
	}
	require.NoError(t, store.CreateSession(ctx, es))

	out := date.Add(9 * time.Hour)
	minutes := 60
	es.CheckOutTime = &out
	es.DurationMinutes = &minutes
	es.TotalExposure = &exposure
	es.DailyTotalExposure = &exposure
	require.NoError(t, store.CompleteSession(ctx, es))
}

func TestRecomputeAll_WritesSummaries(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	ctx := context.Background()
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	seedCompleted(t, f.store, "E1", today, 10)
	seedCompleted(t, f.store, "E1", today.AddDate(0, 0, -3), 5)
	seedCompleted(t, f.store, "E2", today.AddDate(0, 0, -40), 7)

	res, err := f.agg.RecomputeAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Failed)

	e1, err := f.store.GetSummary(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, e1.DailyExposure)
	assert.Equal(t, 15.0, e1.WeeklyExposure)
	assert.Equal(t, 2, e1.CompletedSessions)

	e2, err := f.store.GetSummary(ctx, "E2")
	require.NoError(t, err)
	assert.Zero(t, e2.MonthlyExposure)
	assert.Equal(t, 7.0, e2.AnnualExposure)
}

func TestRecomputeAll_SkipsFreshSummaries(t *testing.T) {
	f := newAggFixture(3*time.Hour, stubRateSource{})
	ctx := context.Background()
	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 1)

	// session created just now counts as recent activity
	res, err := f.agg.RecomputeAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	f.clock.Advance(2 * time.Hour)
	res, err = f.agg.RecomputeAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	res, err = f.agg.RecomputeAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, res.Forced)

	f.clock.Advance(4 * time.Hour)
	res, err = f.agg.RecomputeAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
}

func TestRecomputeAll_ActiveSessionAlwaysRecomputed(t *testing.T) {
	f := newAggFixture(24*time.Hour, stubRateSource{})
	ctx := context.Background()
	require.NoError(t, f.store.CreateSession(ctx, &models.ExposureSession{
		EmployeeID:  "E1",
		SessionDate: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		CheckInTime: t0,
	}))

	for i := 0; i < 3; i++ {
		f.clock.Advance(2 * time.Hour)
		res, err := f.agg.RecomputeAll(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
	}
	cs, err := f.store.GetSummary(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 1, cs.ActiveSessions)
}

func TestRecomputeAll_RaisesAlerts(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{rate: 3.1, ok: true})
	ctx := context.Background()
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	seedCompleted(t, f.store, "E1", today, 60)
	require.NoError(t, f.store.CreateSession(ctx, &models.ExposureSession{
		EmployeeID:  "E1",
		SessionDate: today,
		CheckInTime: t0,
	}))
	seedCompleted(t, f.store, "E2", today, 1)

	res, err := f.agg.RecomputeAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Alerts)

	alerts, err := f.store.ListAlerts(ctx, models.AlertFilter{EmployeeID: "E1"})
	require.NoError(t, err)
	var kinds []string
	for _, a := range alerts {
		kinds = append(kinds, a.AlertType)
	}
	assert.ElementsMatch(t, []string{alerting.TypeDoseRateDanger, alerting.TypeDailyLimitExceeded}, kinds)

	none, err := f.store.ListAlerts(ctx, models.AlertFilter{EmployeeID: "E2"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// de-duplicated on the next pass
	res, err = f.agg.RecomputeAll(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, res.Alerts)
}

func TestRecomputeAll_PregnantLimits(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	ctx := context.Background()
	require.NoError(t, f.store.UpsertEmployee(ctx, &models.Employee{EmployeeID: "E1", Name: "Sara", IsPregnant: true}))
	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 4)

	_, err := f.agg.RecomputeAll(ctx, true)
	require.NoError(t, err)

	alerts, err := f.store.ListAlerts(ctx, models.AlertFilter{EmployeeID: "E1"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alerting.TypeDailyLimitExceeded, alerts[0].AlertType)
	assert.Equal(t, 3.7, alerts[0].ThresholdValue)
	assert.Contains(t, alerts[0].Message, "Sara")
}

func TestRecomputeAll_ContinuesPastFailures(t *testing.T) {
	clock := timeengine.NewFixedClock(t0)
	engine := timeengine.New(time.UTC, clock)
	mem := repository.NewMemoryStore(clock.Now)
	store := &failingStore{MemoryStore: mem, failFor: "E1"}
	agg := New(store, engine, nil, nil, DefaultInterval, zap.NewNop())
	ctx := context.Background()
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	seedCompleted(t, mem, "E1", today, 1)
	seedCompleted(t, mem, "E2", today, 2)
	seedCompleted(t, mem, "E3", today, 3)

	res, err := agg.RecomputeAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Updated)

	_, err = mem.GetSummary(ctx, "E1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecomputeAll_CancelledContext(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.agg.RecomputeAll(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Updated)
}

func TestRecomputeEmployee(t *testing.T) {
	f := newAggFixture(DefaultInterval, stubRateSource{})
	ctx := context.Background()

	_, err := f.agg.RecomputeEmployee(ctx, "")
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))

	seedCompleted(t, f.store, "E1", time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), 2.5)
	cs, err := f.agg.RecomputeEmployee(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cs.WeeklyExposure)
	assert.Zero(t, cs.DailyExposure)
}
