package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

const sessionColumns = `
	id, employee_id, session_date, check_in_time, check_out_time,
	initial_total_dose, final_total_dose, exposure_duration_minutes,
	average_dose_rate, total_exposure, max_dose_rate, min_dose_rate,
	is_active, daily_total_exposure, exposure_method, notes, created_at`

// scanSession reads sessionColumns followed by any extra destinations.
func (s *PostgresStore) scanSession(row rowScanner, extra ...interface{}) (*models.ExposureSession, error) {
	var (
		es                                    models.ExposureSession
		checkOut                              sql.NullTime
		finalDose, avgRate, total, maxR, minR sql.NullFloat64
		daily                                 sql.NullFloat64
		duration                              sql.NullInt64
	)
	dest := []interface{}{
		&es.ID, &es.EmployeeID, &es.SessionDate, &es.CheckInTime, &checkOut,
		&es.InitialTotalDose, &finalDose, &duration,
		&avgRate, &total, &maxR, &minR,
		&es.IsActive, &daily, &es.ExposureMethod, &es.Notes, &es.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	es.SessionDate = s.localDate(es.SessionDate)
	es.CheckInTime = es.CheckInTime.In(s.loc)
	es.CreatedAt = es.CreatedAt.In(s.loc)
	if checkOut.Valid {
		t := checkOut.Time.In(s.loc)
		es.CheckOutTime = &t
	}
	es.FinalTotalDose = nullFloatPtr(finalDose)
	es.DurationMinutes = nullIntPtr(duration)
	es.AverageDoseRate = nullFloatPtr(avgRate)
	es.TotalExposure = nullFloatPtr(total)
	es.MaxDoseRate = nullFloatPtr(maxR)
	es.MinDoseRate = nullFloatPtr(minR)
	es.DailyTotalExposure = nullFloatPtr(daily)
	return &es, nil
}

func (s *PostgresStore) querySessions(ctx context.Context, query string, args ...interface{}) ([]models.ExposureSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.ExposureSession
	for rows.Next() {
		es, err := s.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *es)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ActiveSessions(ctx context.Context, employeeID string) ([]models.ExposureSession, error) {
	if employeeID == "" {
		return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM exposure_sessions
			WHERE is_active = TRUE ORDER BY check_in_time DESC, id DESC`)
	}
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM exposure_sessions
		WHERE employee_id = $1 AND is_active = TRUE ORDER BY check_in_time DESC, id DESC`, employeeID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*models.ExposureSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM exposure_sessions WHERE id = $1`, id)
	es, err := s.scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return es, nil
}

// CreateSession inserts an open session and fills in ID and CreatedAt.
func (s *PostgresStore) CreateSession(ctx context.Context, es *models.ExposureSession) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO exposure_sessions (employee_id, session_date, check_in_time, initial_total_dose, is_active, notes)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id, created_at`,
		es.EmployeeID, es.SessionDate.Format(dateLayout), es.CheckInTime, es.InitialTotalDose, es.Notes,
	).Scan(&es.ID, &es.CreatedAt)
	if isUniqueViolation(err) {
		return ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	es.IsActive = true
	return nil
}

// CompleteSession writes the close-out fields of an open session.
func (s *PostgresStore) CompleteSession(ctx context.Context, es *models.ExposureSession) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exposure_sessions SET
			check_out_time = $2,
			final_total_dose = $3,
			exposure_duration_minutes = $4,
			average_dose_rate = $5,
			total_exposure = $6,
			max_dose_rate = $7,
			min_dose_rate = $8,
			daily_total_exposure = $9,
			exposure_method = $10,
			notes = $11,
			is_active = FALSE
		WHERE id = $1 AND is_active = TRUE`,
		es.ID, es.CheckOutTime, es.FinalTotalDose, es.DurationMinutes,
		es.AverageDoseRate, es.TotalExposure, es.MaxDoseRate, es.MinDoseRate,
		es.DailyTotalExposure, es.ExposureMethod, es.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session %d: %w", es.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	es.IsActive = false
	return nil
}

// AutoCloseSession deactivates an open session and appends note, leaving
// every other column untouched.
func (s *PostgresStore) AutoCloseSession(ctx context.Context, id int64, note string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exposure_sessions
		SET is_active = FALSE, notes = TRIM(BOTH ' ' FROM notes || ' ' || $2)
		WHERE id = $1 AND is_active = TRUE`, id, note)
	if err != nil {
		return fmt.Errorf("failed to auto-close session %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EmployeeSessions(ctx context.Context, employeeID string) ([]models.ExposureSession, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM exposure_sessions
		WHERE employee_id = $1 ORDER BY session_date, check_in_time, id`, employeeID)
}

func (s *PostgresStore) SessionReports(ctx context.Context, filter models.SessionReportFilter) ([]models.SessionReport, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.Format(dateLayout))
		where = append(where, fmt.Sprintf("session_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.Format(dateLayout))
		where = append(where, fmt.Sprintf("session_date <= $%d", len(args)))
	}

	query := `SELECT ` + sessionColumns + `, COALESCE(e.employee_name, '')
		FROM exposure_sessions
		LEFT JOIN (SELECT employee_id AS emp_id, name AS employee_name FROM employees) e
			ON e.emp_id = exposure_sessions.employee_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY check_in_time DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session reports: %w", err)
	}
	defer rows.Close()

	var out []models.SessionReport
	for rows.Next() {
		var name string
		es, err := s.scanSession(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session report: %w", err)
		}
		out = append(out, models.SessionReport{ExposureSession: *es, EmployeeName: name})
	}
	return out, rows.Err()
}

func (s *PostgresStore) EmployeesWithSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT employee_id FROM exposure_sessions ORDER BY employee_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// HasRecentActivity reports an open session or one created at or after since.
func (s *PostgresStore) HasRecentActivity(ctx context.Context, employeeID string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exposure_sessions
			WHERE employee_id = $1 AND (is_active = TRUE OR created_at >= $2)
		)`, employeeID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recent activity: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DailyExposure(ctx context.Context, employeeID string, date time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(daily_total_exposure), 0)
		FROM exposure_sessions
		WHERE employee_id = $1 AND session_date = $2`, employeeID, date.Format(dateLayout),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum daily exposure: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CumulativeExposure(ctx context.Context, employeeID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_exposure), 0)
		FROM exposure_sessions
		WHERE employee_id = $1 AND is_active = FALSE AND total_exposure IS NOT NULL`, employeeID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum cumulative exposure: %w", err)
	}
	return total, nil
}
