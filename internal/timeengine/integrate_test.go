package timeengine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIntegrateSessionLeftRectangle(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := []RateSample{
		{Rate: 10, At: t0},
		{Rate: 20, At: t0.Add(time.Hour)},
	}

	total, ok := IntegrateSession(samples, t0, t0.Add(2*time.Hour))
	assert.True(t, ok)
	assert.True(t, total.Equal(decimal.NewFromInt(30)), total.String())
}

func TestIntegrateSessionSortsByTimestamp(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := []RateSample{
		{Rate: 20, At: t0.Add(time.Hour)},
		{Rate: 10, At: t0},
		{Rate: 20, At: t0.Add(time.Hour)}, // same reading stored for another session
	}

	total, ok := IntegrateSession(samples, t0, t0.Add(2*time.Hour))
	assert.True(t, ok)
	assert.True(t, total.Equal(decimal.NewFromInt(30)), total.String())
}

func TestIntegrateSessionIgnoresSamplesAfterEnd(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := []RateSample{
		{Rate: 0.5, At: t0},
		{Rate: 100, At: t0.Add(3 * time.Hour)},
	}

	total, ok := IntegrateSession(samples, t0, t0.Add(30*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, "0.25", total.String())
}

func TestIntegrateSessionUndefinedWithoutSamples(t *testing.T) {
	end := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	total, ok := IntegrateSession(nil, end.Add(-time.Hour), end)
	assert.False(t, ok)
	assert.True(t, total.IsZero())

	_, ok = IntegrateSession([]RateSample{{Rate: 1, At: end.Add(time.Minute)}}, end.Add(-time.Hour), end)
	assert.False(t, ok)
}

func TestIntegrateSessionInputUntouched(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := []RateSample{{Rate: 2, At: t0.Add(time.Hour)}, {Rate: 1, At: t0}}
	IntegrateSession(samples, t0, t0.Add(2*time.Hour))
	assert.Equal(t, 2.0, samples[0].Rate)
}

func TestIntegrateSessionClampsToStart(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := []RateSample{
		{Rate: 50, At: t0.Add(-3 * time.Hour)}, // superseded before start
		{Rate: 10, At: t0.Add(-time.Hour)},     // in force at start
		{Rate: 20, At: t0.Add(time.Hour)},
	}

	total, ok := IntegrateSession(samples, t0, t0.Add(2*time.Hour))
	assert.True(t, ok)
	assert.True(t, total.Equal(decimal.NewFromInt(30)), total.String())
}
