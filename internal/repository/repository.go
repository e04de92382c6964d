// Package repository is the persistence port for readings, sessions,
// summaries, alerts, employees and attendance, with PostgreSQL and
// in-memory implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

var (
	// ErrNotFound is returned by single-row lookups and updates that match nothing.
	ErrNotFound = models.ErrNotFound
	// ErrActiveSessionExists is returned by CreateSession when the employee
	// already has an open session.
	ErrActiveSessionExists = errors.New("employee already has an active session")
)

// ReadingRepository persists sensor readings.
type ReadingRepository interface {
	// SaveReading writes one row per currently open session, or a single
	// session-less row when none is open, and returns the session ids used.
	// Writing the same reading twice is a no-op.
	SaveReading(ctx context.Context, r models.Reading) ([]int64, error)
	// LatestReadings returns up to limit distinct readings, oldest first.
	LatestReadings(ctx context.Context, limit int) ([]models.Reading, error)
	SessionReadings(ctx context.Context, sessionID int64) ([]models.Reading, error)
	// UnattributedReadings returns session-less rows in [start, end].
	UnattributedReadings(ctx context.Context, start, end time.Time) ([]models.Reading, error)
	DoseRateStats(ctx context.Context, start, end time.Time) (models.DoseRateStats, error)
	CountEmployeeReadings(ctx context.Context, employeeID string) (int, error)
}

// SessionRepository persists exposure sessions.
type SessionRepository interface {
	// ActiveSessions lists open sessions, newest check-in first. An empty
	// employeeID lists every employee.
	ActiveSessions(ctx context.Context, employeeID string) ([]models.ExposureSession, error)
	GetSession(ctx context.Context, id int64) (*models.ExposureSession, error)
	CreateSession(ctx context.Context, s *models.ExposureSession) error
	CompleteSession(ctx context.Context, s *models.ExposureSession) error
	AutoCloseSession(ctx context.Context, id int64, note string) error
	// EmployeeSessions lists sessions by session date then check-in, oldest first.
	EmployeeSessions(ctx context.Context, employeeID string) ([]models.ExposureSession, error)
	EmployeesWithSessions(ctx context.Context) ([]string, error)
	// SessionReports lists matching sessions joined with employee names,
	// newest check-in first.
	SessionReports(ctx context.Context, filter models.SessionReportFilter) ([]models.SessionReport, error)
	HasRecentActivity(ctx context.Context, employeeID string, since time.Time) (bool, error)
	DailyExposure(ctx context.Context, employeeID string, date time.Time) (float64, error)
	CumulativeExposure(ctx context.Context, employeeID string) (float64, error)
}

// SummaryRepository persists the derived cumulative summaries.
type SummaryRepository interface {
	GetSummary(ctx context.Context, employeeID string) (*models.CumulativeSummary, error)
	UpsertSummary(ctx context.Context, s *models.CumulativeSummary) error
	ListSummaries(ctx context.Context) ([]models.CumulativeSummary, error)
}

// AlertRepository persists safety alerts.
type AlertRepository interface {
	CreateAlert(ctx context.Context, a *models.SafetyAlert) error
	RecentAlertExists(ctx context.Context, employeeID, alertType string, since time.Time) (bool, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.SafetyAlert, error)
	UnreadCount(ctx context.Context, employeeID string) (int, error)
	AcknowledgeAlert(ctx context.Context, id int64) error
	AcknowledgeAll(ctx context.Context, employeeID string) (int64, error)
}

// EmployeeRepository persists employee profiles.
type EmployeeRepository interface {
	GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error)
	UpsertEmployee(ctx context.Context, e *models.Employee) error
}

// AttendanceRepository persists accepted attendance intents.
type AttendanceRepository interface {
	RecordAttendance(ctx context.Context, rec *models.AttendanceRecord) error
	LastAttendance(ctx context.Context, employeeID string, since time.Time) (*models.AttendanceRecord, error)
}

// Store is the full persistence port.
type Store interface {
	ReadingRepository
	SessionRepository
	SummaryRepository
	AlertRepository
	EmployeeRepository
	AttendanceRepository
	Ping(ctx context.Context) error
	Purge(ctx context.Context, target PurgeTarget) (int64, error)
}

// PurgeTarget names what an administrative purge deletes.
type PurgeTarget string

const (
	PurgeReadings   PurgeTarget = "readings"
	PurgeSessions   PurgeTarget = "sessions"
	PurgeAlerts     PurgeTarget = "alerts"
	PurgeSummaries  PurgeTarget = "summaries"
	PurgeAttendance PurgeTarget = "attendance"
	PurgeAll        PurgeTarget = "all"
)

// ParsePurgeTarget validates a purge target name.
func ParsePurgeTarget(s string) (PurgeTarget, error) {
	switch t := PurgeTarget(s); t {
	case PurgeReadings, PurgeSessions, PurgeAlerts, PurgeSummaries, PurgeAttendance, PurgeAll:
		return t, nil
	}
	return "", fmt.Errorf("unknown purge target %q", s)
}

const dateLayout = "2006-01-02"
