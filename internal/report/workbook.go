// Package report renders exposure data as Excel workbooks.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Sheet names
const (
	SummarySheet = "Cumulative Exposure"
	AlertSheet   = "Safety Alerts"
)

const timeLayout = "2006-01-02 15:04:05"

type column[T any] struct {
	header string
	width  float64
	value  func(T) any
}

var summaryColumns = []column[models.CumulativeSummary]{
	{"Employee ID", 15, func(s models.CumulativeSummary) any { return s.EmployeeID }},
	{"Total Sessions", 14, func(s models.CumulativeSummary) any { return s.TotalSessions }},
	{"Completed", 12, func(s models.CumulativeSummary) any { return s.CompletedSessions }},
	{"Active", 10, func(s models.CumulativeSummary) any { return s.ActiveSessions }},
	{"Total Hours", 12, func(s models.CumulativeSummary) any { return s.TotalDurationHours }},
	{"Total Exposure (µSv)", 20, func(s models.CumulativeSummary) any { return s.TotalCumulativeExposure }},
	{"Daily (µSv)", 14, func(s models.CumulativeSummary) any { return s.DailyExposure }},
	{"Weekly (µSv)", 14, func(s models.CumulativeSummary) any { return s.WeeklyExposure }},
	{"Monthly (µSv)", 14, func(s models.CumulativeSummary) any { return s.MonthlyExposure }},
	{"Annual (µSv)", 14, func(s models.CumulativeSummary) any { return s.AnnualExposure }},
	{"Daily %", 10, func(s models.CumulativeSummary) any { return s.DailyLimitPercentage }},
	{"Annual %", 10, func(s models.CumulativeSummary) any { return s.AnnualLimitPercentage }},
	{"Safety Status", 14, func(s models.CumulativeSummary) any { return s.SafetyStatus }},
	{"Risk Level", 12, func(s models.CumulativeSummary) any { return s.RiskLevel }},
	{"Max Session (µSv)", 18, func(s models.CumulativeSummary) any { return s.MaxSingleSessionExposure }},
	{"Last Session", 14, func(s models.CumulativeSummary) any { return dateValue(s.LastSessionDate) }},
	{"Last Updated", 20, func(s models.CumulativeSummary) any { return s.LastUpdated.Format(timeLayout) }},
}

var alertColumns = []column[models.SafetyAlert]{
	{"Time", 20, func(a models.SafetyAlert) any { return a.Timestamp.Format(timeLayout) }},
	{"Employee ID", 15, func(a models.SafetyAlert) any { return a.EmployeeID }},
	{"Type", 26, func(a models.SafetyAlert) any { return a.AlertType }},
	{"Level", 10, func(a models.SafetyAlert) any { return a.AlertLevel }},
	{"Value", 12, func(a models.SafetyAlert) any { return a.DoseValue }},
	{"Threshold", 12, func(a models.SafetyAlert) any { return a.ThresholdValue }},
	{"Acknowledged", 14, func(a models.SafetyAlert) any { return yesNo(a.Acknowledged) }},
	{"Message", 60, func(a models.SafetyAlert) any { return a.Message }},
}

// CumulativeWorkbook renders summaries, and alerts when given, into an xlsx file.
func CumulativeWorkbook(summaries []models.CumulativeSummary, alerts []models.SafetyAlert) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(SummarySheet); err == nil {
		f.SetActiveSheet(index)
	}
	if err := writeSheet(f, SummarySheet, headerStyle, summaryColumns, summaries); err != nil {
		return nil, err
	}

	if len(alerts) > 0 {
		if _, err := f.NewSheet(AlertSheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := writeSheet(f, AlertSheet, headerStyle, alertColumns, alerts); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet[T any](f *excelize.File, sheet string, headerStyle int, cols []column[T], rows []T) error {
	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		for i, c := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, c.value(row)); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func dateValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
