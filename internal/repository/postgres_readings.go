package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

const readingColumns = `reading_uid, cpm, source_power, absorbed_dose_rate, total_absorbed_dose, sensor_id, session_id, timestamp`

// SaveReading fans r out to every open session inside one transaction, so
// attribution reflects the sessions open at write time.
func (s *PostgresStore) SaveReading(ctx context.Context, r models.Reading) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reading insert: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM exposure_sessions WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	var sessionIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	insert := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reading_uid, (COALESCE(session_id, 0))) DO NOTHING`

	targets := make([]interface{}, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		targets = append(targets, nil)
	}
	for _, sessionID := range targets {
		if _, err := tx.ExecContext(ctx, insert,
			r.ID, r.CPM, r.SourcePower, r.AbsorbedDoseRate, r.TotalAbsorbedDose, r.SensorID, sessionID, r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to insert reading %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reading %s: %w", r.ID, err)
	}
	return sessionIDs, nil
}

func (s *PostgresStore) LatestReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT ON (timestamp, reading_uid) ` + readingColumns + `
		FROM readings
		ORDER BY timestamp DESC, reading_uid
		LIMIT $1`
	readings, err := s.queryReadings(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

func (s *PostgresStore) SessionReadings(ctx context.Context, sessionID int64) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE session_id = $1 ORDER BY timestamp, id`
	return s.queryReadings(ctx, query, sessionID)
}

func (s *PostgresStore) UnattributedReadings(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE session_id IS NULL AND timestamp BETWEEN $1 AND $2
		ORDER BY timestamp, id`
	return s.queryReadings(ctx, query, start, end)
}

func (s *PostgresStore) DoseRateStats(ctx context.Context, start, end time.Time) (models.DoseRateStats, error) {
	var (
		stats                     models.DoseRateStats
		avgRate, maxRate, minRate sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(absorbed_dose_rate), MAX(absorbed_dose_rate), MIN(absorbed_dose_rate)
		FROM readings
		WHERE timestamp BETWEEN $1 AND $2`, start, end,
	).Scan(&stats.Count, &avgRate, &maxRate, &minRate)
	if err != nil {
		return stats, fmt.Errorf("failed to query dose rate stats: %w", err)
	}
	stats.Avg, stats.Max, stats.Min = avgRate.Float64, maxRate.Float64, minRate.Float64
	return stats, nil
}

func (s *PostgresStore) CountEmployeeReadings(ctx context.Context, employeeID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM readings r
		JOIN exposure_sessions es ON r.session_id = es.id
		WHERE es.employee_id = $1`, employeeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) queryReadings(ctx context.Context, query string, args ...interface{}) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []models.Reading
	for rows.Next() {
		var (
			r         models.Reading
			sessionID sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.CPM, &r.SourcePower, &r.AbsorbedDoseRate, &r.TotalAbsorbedDose,
			&r.SensorID, &sessionID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if sessionID.Valid {
			id := sessionID.Int64
			r.SessionID = &id
		}
		r.Timestamp = r.Timestamp.In(s.loc)
		out = append(out, r)
	}
	return out, rows.Err()
}
