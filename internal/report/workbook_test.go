package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

func TestCumulativeWorkbook(t *testing.T) {
	last := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	summaries := []models.CumulativeSummary{
		{EmployeeID: "E1", TotalSessions: 3, AnnualExposure: 120.5, SafetyStatus: "Safe", LastSessionDate: &last},
		{EmployeeID: "E2", TotalSessions: 1, SafetyStatus: "Warning"},
	}
	alerts := []models.SafetyAlert{
		{EmployeeID: "E1", AlertType: "dose_rate_danger", AlertLevel: "danger", DoseValue: 3.2, Acknowledged: true},
	}

	data, err := CumulativeWorkbook(summaries, alerts)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, AlertSheet}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Employee ID", rows[0][0])
	assert.Equal(t, "E1", rows[1][0])
	assert.Equal(t, "120.5", rows[1][9])
	assert.Equal(t, "2026-10-14", rows[1][15])
	assert.Equal(t, "Warning", rows[2][12])

	ack, err := f.GetCellValue(AlertSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "Yes", ack)
}

func TestCumulativeWorkbook_Empty(t *testing.T) {
	data, err := CumulativeWorkbook(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet}, f.GetSheetList())
	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
