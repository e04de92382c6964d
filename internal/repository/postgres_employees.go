package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

func (s *PostgresStore) GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error) {
	var e models.Employee
	err := s.db.QueryRowContext(ctx,
		`SELECT employee_id, name, is_pregnant FROM employees WHERE employee_id = $1`, employeeID,
	).Scan(&e.EmployeeID, &e.Name, &e.IsPregnant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee %s: %w", employeeID, err)
	}
	return &e, nil
}

func (s *PostgresStore) UpsertEmployee(ctx context.Context, e *models.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (employee_id, name, is_pregnant)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id) DO UPDATE SET name = EXCLUDED.name, is_pregnant = EXCLUDED.is_pregnant`,
		e.EmployeeID, e.Name, e.IsPregnant,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert employee %s: %w", e.EmployeeID, err)
	}
	return nil
}

func (s *PostgresStore) RecordAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attendance (employee_id, check_type, timestamp)
		VALUES ($1, $2, $3)
		RETURNING id`, rec.EmployeeID, rec.CheckType, rec.Timestamp,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	return nil
}

// LastAttendance returns the latest record at or after since.
func (s *PostgresStore) LastAttendance(ctx context.Context, employeeID string, since time.Time) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, check_type, timestamp
		FROM attendance
		WHERE employee_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, employeeID, since,
	).Scan(&rec.ID, &rec.EmployeeID, &rec.CheckType, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last attendance: %w", err)
	}
	rec.Timestamp = rec.Timestamp.In(s.loc)
	return &rec, nil
}
