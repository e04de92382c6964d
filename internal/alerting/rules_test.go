package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func types(alerts []models.SafetyAlert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.AlertType
	}
	return out
}

func TestEvaluate_RateTiers(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want []string
	}{
		{"background", 0.3, []string{}},
		{"elevated", 0.31, []string{TypeDoseRateWarning}},
		{"at danger threshold", 2.38, []string{TypeDoseRateWarning}},
		{"danger", 2.39, []string{TypeDoseRateDanger}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{EmployeeID: "E1", DoseRate: tt.rate, HasRate: true}, now)
			assert.Equal(t, tt.want, types(got))
		})
	}
}

func TestEvaluate_RateIgnoredWithoutOpenSession(t *testing.T) {
	got := Evaluate(Input{EmployeeID: "E1", DoseRate: 10}, now)
	assert.Empty(t, got)
}

func TestEvaluate_DailyAndAnnualBands(t *testing.T) {
	tests := []struct {
		name   string
		daily  float64
		annual float64
		want   []string
	}{
		{"below half", 27.3, 9999, []string{}},
		{"half daily", 27.4, 0, []string{TypeDailyLimitMonitoring50}},
		{"80 percent daily", 44, 0, []string{TypeDailyLimitWarning80}},
		{"daily exceeded", 54.8, 0, []string{TypeDailyLimitExceeded}},
		{"half annual", 0, 10000, []string{TypeAnnualLimitMonitoring50}},
		{"80 percent annual", 0, 16000, []string{TypeAnnualLimitWarning80}},
		{"annual exceeded", 60, 20000, []string{TypeDailyLimitExceeded, TypeAnnualLimitExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{EmployeeID: "E1", DailyDose: tt.daily, AnnualDose: tt.annual}, now)
			assert.Equal(t, tt.want, types(got))
		})
	}
}

func TestEvaluate_PregnantLimits(t *testing.T) {
	got := Evaluate(Input{EmployeeID: "E1", IsPregnant: true, DailyDose: 3.7, AnnualDose: 500}, now)
	require.Len(t, got, 2)
	assert.Equal(t, TypeDailyLimitExceeded, got[0].AlertType)
	assert.Equal(t, 3.7, got[0].ThresholdValue)
	assert.Equal(t, models.AlertLevelCritical, got[0].AlertLevel)
	assert.Equal(t, TypeAnnualLimitMonitoring50, got[1].AlertType)
	assert.Equal(t, 1000.0, got[1].ThresholdValue)
}

func TestEvaluate_MessageUsesName(t *testing.T) {
	got := Evaluate(Input{EmployeeID: "E1", Name: "Sara", DoseRate: 3, HasRate: true}, now)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Sara")
	assert.Contains(t, got[0].Message, "3.00 µSv/h")
	assert.Equal(t, models.AlertCategoryDoseRate, got[0].Category)
	assert.True(t, got[0].Timestamp.Equal(now))
}
