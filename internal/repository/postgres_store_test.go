package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresStore(db, time.UTC)
}

func testReading(ts time.Time) models.Reading {
	return models.Reading{
		ID:                "0b6c1a52-8d59-4a77-9f5e-1f3f3d3b6a10",
		CPM:               42,
		SourcePower:       1.5,
		AbsorbedDoseRate:  0.25,
		TotalAbsorbedDose: 12.5,
		SensorID:          "sensor-1",
		Timestamp:         ts,
	}
}

func TestSaveReading_FansOutToActiveSessions(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	ts := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	r := testReading(ts)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM exposure_sessions WHERE is_active = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(7)))
	for _, id := range []int64{3, 7} {
		mock.ExpectExec(`INSERT INTO readings`).
			WithArgs(r.ID, r.CPM, r.SourcePower, r.AbsorbedDoseRate, r.TotalAbsorbedDose, r.SensorID, id, ts).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	ids, err := store.SaveReading(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_NoActiveSession(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	ts := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	r := testReading(ts)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM exposure_sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(r.ID, r.CPM, r.SourcePower, r.AbsorbedDoseRate, r.TotalAbsorbedDose, r.SensorID, nil, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ids, err := store.SaveReading(context.Background(), r)

	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_InsertFailureRollsBack(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM exposure_sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO readings`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := store.SaveReading(context.Background(), testReading(time.Now()))

	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReadings_OldestFirst(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	t1 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	cols := []string{"reading_uid", "cpm", "source_power", "absorbed_dose_rate", "total_absorbed_dose", "sensor_id", "session_id", "timestamp"}
	mock.ExpectQuery(`SELECT DISTINCT ON`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b", int64(20), 1.0, 0.4, 2.0, "s", nil, t2).
			AddRow("a", int64(10), 1.0, 0.2, 1.0, "s", int64(5), t1))

	got, err := store.LatestReadings(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	require.NotNil(t, got[0].SessionID)
	assert.Equal(t, int64(5), *got[0].SessionID)
	assert.Equal(t, "b", got[1].ID)
	assert.Nil(t, got[1].SessionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoseRateStats_EmptyWindow(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\), AVG\(absorbed_dose_rate\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg", "max", "min"}).AddRow(int64(0), nil, nil, nil))

	stats, err := store.DoseRateStats(context.Background(), time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.DoseRateStats{}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_UniqueViolation(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO exposure_sessions`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateSession(context.Background(), &models.ExposureSession{
		EmployeeID:  "E1",
		SessionDate: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		CheckInTime: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC),
	})

	assert.ErrorIs(t, err, ErrActiveSessionExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_Success(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	checkIn := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO exposure_sessions`).
		WithArgs("E1", "2026-10-15", checkIn, 12.5, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), checkIn))

	es := &models.ExposureSession{
		EmployeeID:       "E1",
		SessionDate:      time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		CheckInTime:      checkIn,
		InitialTotalDose: 12.5,
	}
	require.NoError(t, store.CreateSession(context.Background(), es))

	assert.Equal(t, int64(9), es.ID)
	assert.True(t, es.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_NotFound(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`FROM exposure_sessions WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnError(sql.ErrNoRows)

	es, err := store.GetSession(context.Background(), 4)

	assert.Nil(t, es)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_ScansNullableColumns(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	checkIn := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	cols := []string{"id", "employee_id", "session_date", "check_in_time", "check_out_time",
		"initial_total_dose", "final_total_dose", "exposure_duration_minutes",
		"average_dose_rate", "total_exposure", "max_dose_rate", "min_dose_rate",
		"is_active", "daily_total_exposure", "exposure_method", "notes", "created_at"}
	mock.ExpectQuery(`FROM exposure_sessions WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(4), "E1", time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), checkIn, nil,
			1.0, nil, nil,
			nil, nil, nil, nil,
			true, nil, "", "", checkIn,
		))

	es, err := store.GetSession(context.Background(), 4)

	require.NoError(t, err)
	assert.True(t, es.IsActive)
	assert.Nil(t, es.CheckOutTime)
	assert.Nil(t, es.TotalExposure)
	assert.Nil(t, es.DurationMinutes)
	assert.False(t, es.Completed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionReports_FiltersAndJoinsName(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	checkIn := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	out := checkIn.Add(2 * time.Hour)
	cols := []string{"id", "employee_id", "session_date", "check_in_time", "check_out_time",
		"initial_total_dose", "final_total_dose", "exposure_duration_minutes",
		"average_dose_rate", "total_exposure", "max_dose_rate", "min_dose_rate",
		"is_active", "daily_total_exposure", "exposure_method", "notes", "created_at", "employee_name"}
	mock.ExpectQuery(`LEFT JOIN .+ WHERE employee_id = \$1 AND session_date >= \$2 AND session_date <= \$3 ORDER BY check_in_time DESC`).
		WithArgs("E1", "2026-10-01", "2026-10-15").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(9), "E1", time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), checkIn, out,
			1.0, 1.5, int64(120),
			0.25, 0.5, 0.3, 0.2,
			false, 0.5, models.ExposureMethodIntegral, "", checkIn, "Sara",
		))

	got, err := store.SessionReports(context.Background(), models.SessionReportFilter{
		EmployeeID: "E1",
		From:       time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Sara", got[0].EmployeeName)
	assert.Equal(t, int64(9), got[0].ID)
	require.NotNil(t, got[0].TotalExposure)
	assert.Equal(t, 0.5, *got[0].TotalExposure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionReports_NoFilter(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`ON e.emp_id = exposure_sessions.employee_id ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := store.SessionReports(context.Background(), models.SessionReportFilter{})

	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSession_NotActive(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE exposure_sessions SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	total := 1.5
	err := store.CompleteSession(context.Background(), &models.ExposureSession{ID: 4, TotalExposure: &total})

	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoCloseSession_AppendsNote(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`SET is_active = FALSE, notes = TRIM`).
		WithArgs(int64(4), models.AutoCloseNote).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AutoCloseSession(context.Background(), 4, models.AutoCloseNote))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyExposure_UsesDateString(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SUM\(daily_total_exposure\)`).
		WithArgs("E1", "2026-10-15").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(3.25))

	got, err := store.DailyExposure(context.Background(), "E1", time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, 3.25, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSummary_NullDates(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	updated := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	first := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	values := []interface{}{
		"E1",
		int64(3), int64(2), int64(1),
		int64(120), 2.0, 60.0,
		4.5, 2.25, 2.25,
		3.0, 1.5,
		1.5, 4.5, 4.5, 4.5,
		2.7, 1.2, 0.3, 0.0,
		"Safe", "success", "low",
		int64(30), 10.0,
		first, nil, nil,
		updated,
	}
	row := make([]driver.Value, len(values))
	for i, v := range values {
		row[i] = v
	}
	mock.ExpectQuery(`FROM cumulative_summary WHERE employee_id = \$1`).
		WithArgs("E1").
		WillReturnRows(sqlmock.NewRows(summaryColumnNames).AddRow(row...))

	cs, err := store.GetSummary(context.Background(), "E1")

	require.NoError(t, err)
	assert.Equal(t, 3, cs.TotalSessions)
	assert.Equal(t, 4.5, cs.TotalCumulativeExposure)
	require.NotNil(t, cs.FirstSessionDate)
	assert.True(t, first.Equal(*cs.FirstSessionDate))
	assert.Nil(t, cs.LastSessionDate)
	assert.Nil(t, cs.LastCompletedSessionDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSummary_ConflictUpdate(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`ON CONFLICT \(employee_id\) DO UPDATE SET total_sessions = EXCLUDED.total_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpsertSummary(context.Background(), &models.CumulativeSummary{EmployeeID: "E1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts_BuildsFilter(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	ts := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "employee_id", "alert_type", "category", "alert_level", "message",
		"dose_value", "threshold_value", "timestamp", "acknowledged"}
	mock.ExpectQuery(`FROM safety_alerts WHERE employee_id = \$1 AND acknowledged = FALSE ORDER BY timestamp DESC, id DESC LIMIT \$2`).
		WithArgs("E1", MaxAlertLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), "E1", "high_dose_rate", "dose_rate", "danger", "m", 3.0, 2.38, ts, false))

	alerts, err := store.ListAlerts(context.Background(), models.AlertFilter{EmployeeID: "E1", UnreadOnly: true, Limit: 10000})

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "danger", alerts[0].AlertLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE safety_alerts SET acknowledged = TRUE WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.AcknowledgeAlert(context.Background(), 99), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAll_ScopedToEmployee(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`WHERE acknowledged = FALSE AND employee_id = \$1`).
		WithArgs("E1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.AcknowledgeAll(context.Background(), "E1")

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastAttendance_NotFound(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`FROM attendance`).WillReturnError(sql.ErrNoRows)

	rec, err := store.LastAttendance(context.Background(), "E1", time.Now())

	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurge_SessionsOnly(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM exposure_sessions`).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	n, err := store.Purge(context.Background(), PurgeSessions)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurge_AllDeletesDependentsFirst(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	for _, table := range []string{"readings", "safety_alerts", "cumulative_summary", "attendance", "exposure_sessions"} {
		mock.ExpectExec(`DELETE FROM ` + table).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	n, err := store.Purge(context.Background(), PurgeAll)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParsePurgeTarget(t *testing.T) {
	got, err := ParsePurgeTarget("alerts")
	require.NoError(t, err)
	assert.Equal(t, PurgeAlerts, got)

	_, err = ParsePurgeTarget("everything")
	assert.Error(t, err)
}

func TestClampAlertLimit(t *testing.T) {
	assert.Equal(t, DefaultAlertLimit, ClampAlertLimit(0))
	assert.Equal(t, 7, ClampAlertLimit(7))
	assert.Equal(t, MaxAlertLimit, ClampAlertLimit(MaxAlertLimit+1))
}
