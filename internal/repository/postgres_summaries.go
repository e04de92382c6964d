package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

var summaryColumnNames = []string{
	"employee_id",
	"total_sessions", "completed_sessions", "active_sessions",
	"total_duration_minutes", "total_duration_hours", "average_session_duration_minutes",
	"total_cumulative_exposure", "average_exposure_per_session", "average_dose_rate_per_hour",
	"max_single_session_exposure", "min_single_session_exposure",
	"daily_exposure", "weekly_exposure", "monthly_exposure", "annual_exposure",
	"daily_limit_percentage", "weekly_limit_percentage", "monthly_limit_percentage", "annual_limit_percentage",
	"safety_status", "safety_class", "risk_level",
	"total_readings_count", "average_readings_per_session",
	"first_session_date", "last_session_date", "last_completed_session_date",
	"last_updated",
}

var (
	summaryColumns = strings.Join(summaryColumnNames, ", ")
	upsertSummary  = buildSummaryUpsert()
)

func buildSummaryUpsert() string {
	placeholders := make([]string, len(summaryColumnNames))
	updates := make([]string, 0, len(summaryColumnNames)-1)
	for i, col := range summaryColumnNames {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "employee_id" {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	return "INSERT INTO cumulative_summary (" + summaryColumns + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (employee_id) DO UPDATE SET " +
		strings.Join(updates, ", ")
}

func summaryValues(cs *models.CumulativeSummary) []interface{} {
	return []interface{}{
		cs.EmployeeID,
		cs.TotalSessions, cs.CompletedSessions, cs.ActiveSessions,
		cs.TotalDurationMinutes, cs.TotalDurationHours, cs.AverageSessionDurationMin,
		cs.TotalCumulativeExposure, cs.AverageExposurePerSession, cs.AverageDoseRatePerHour,
		cs.MaxSingleSessionExposure, cs.MinSingleSessionExposure,
		cs.DailyExposure, cs.WeeklyExposure, cs.MonthlyExposure, cs.AnnualExposure,
		cs.DailyLimitPercentage, cs.WeeklyLimitPercentage, cs.MonthlyLimitPercentage, cs.AnnualLimitPercentage,
		cs.SafetyStatus, cs.SafetyClass, cs.RiskLevel,
		cs.TotalReadingsCount, cs.AverageReadingsPerSess,
		dateArg(cs.FirstSessionDate), dateArg(cs.LastSessionDate), dateArg(cs.LastCompletedSessionDate),
		cs.LastUpdated,
	}
}

func (s *PostgresStore) scanSummary(row rowScanner) (*models.CumulativeSummary, error) {
	var (
		cs                    models.CumulativeSummary
		first, last, lastDone sql.NullTime
	)
	err := row.Scan(
		&cs.EmployeeID,
		&cs.TotalSessions, &cs.CompletedSessions, &cs.ActiveSessions,
		&cs.TotalDurationMinutes, &cs.TotalDurationHours, &cs.AverageSessionDurationMin,
		&cs.TotalCumulativeExposure, &cs.AverageExposurePerSession, &cs.AverageDoseRatePerHour,
		&cs.MaxSingleSessionExposure, &cs.MinSingleSessionExposure,
		&cs.DailyExposure, &cs.WeeklyExposure, &cs.MonthlyExposure, &cs.AnnualExposure,
		&cs.DailyLimitPercentage, &cs.WeeklyLimitPercentage, &cs.MonthlyLimitPercentage, &cs.AnnualLimitPercentage,
		&cs.SafetyStatus, &cs.SafetyClass, &cs.RiskLevel,
		&cs.TotalReadingsCount, &cs.AverageReadingsPerSess,
		&first, &last, &lastDone,
		&cs.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	cs.FirstSessionDate = s.nullDate(first)
	cs.LastSessionDate = s.nullDate(last)
	cs.LastCompletedSessionDate = s.nullDate(lastDone)
	cs.LastUpdated = cs.LastUpdated.In(s.loc)
	return &cs, nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, employeeID string) (*models.CumulativeSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM cumulative_summary WHERE employee_id = $1`, employeeID)
	cs, err := s.scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary for %s: %w", employeeID, err)
	}
	return cs, nil
}

// UpsertSummary replaces the employee's row; each call is independent.
func (s *PostgresStore) UpsertSummary(ctx context.Context, cs *models.CumulativeSummary) error {
	if _, err := s.db.ExecContext(ctx, upsertSummary, summaryValues(cs)...); err != nil {
		return fmt.Errorf("failed to upsert summary for %s: %w", cs.EmployeeID, err)
	}
	return nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context) ([]models.CumulativeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+summaryColumns+` FROM cumulative_summary ORDER BY employee_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var out []models.CumulativeSummary
	for rows.Next() {
		cs, err := s.scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, *cs)
	}
	return out, rows.Err()
}
