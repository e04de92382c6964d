package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

const alertColumns = `id, employee_id, alert_type, category, alert_level, message, dose_value, threshold_value, timestamp, acknowledged`

// Listing bounds
const (
	DefaultAlertLimit = 50
	MaxAlertLimit     = 500
)

func (s *PostgresStore) CreateAlert(ctx context.Context, a *models.SafetyAlert) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO safety_alerts (employee_id, alert_type, category, alert_level, message, dose_value, threshold_value, timestamp, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING id`,
		a.EmployeeID, a.AlertType, a.Category, a.AlertLevel, a.Message, a.DoseValue, a.ThresholdValue, a.Timestamp,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentAlertExists(ctx context.Context, employeeID, alertType string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM safety_alerts
			WHERE employee_id = $1 AND alert_type = $2 AND timestamp > $3
		)`, employeeID, alertType, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recent alert: %w", err)
	}
	return exists, nil
}

// ListAlerts returns alerts newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.SafetyAlert, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.UnreadOnly {
		where = append(where, "acknowledged = FALSE")
	}

	query := `SELECT ` + alertColumns + ` FROM safety_alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, ClampAlertLimit(filter.Limit))
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.SafetyAlert
	for rows.Next() {
		var a models.SafetyAlert
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.AlertType, &a.Category, &a.AlertLevel, &a.Message,
			&a.DoseValue, &a.ThresholdValue, &a.Timestamp, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Timestamp = a.Timestamp.In(s.loc)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UnreadCount(ctx context.Context, employeeID string) (int, error) {
	query := `SELECT COUNT(*) FROM safety_alerts WHERE acknowledged = FALSE`
	var args []interface{}
	if employeeID != "" {
		query += ` AND employee_id = $1`
		args = append(args, employeeID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE safety_alerts SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AcknowledgeAll(ctx context.Context, employeeID string) (int64, error) {
	query := `UPDATE safety_alerts SET acknowledged = TRUE WHERE acknowledged = FALSE`
	var args []interface{}
	if employeeID != "" {
		query += ` AND employee_id = $1`
		args = append(args, employeeID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClampAlertLimit applies the default and maximum page size.
func ClampAlertLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAlertLimit
	case limit > MaxAlertLimit:
		return MaxAlertLimit
	default:
		return limit
	}
}
