// Package httpapi is the JSON surface over the cache, sessions, summaries,
// alerts, attendance and the scheduler.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/aggregator"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/attendance"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/consumer"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/session"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// ReadingCache is the read side of the reading cache.
type ReadingCache interface {
	Latest() (models.Reading, bool)
	Since(t time.Time) []models.Reading
	Recent(n int) []models.Reading
	Stats() models.CacheStats
}

// Ingestor accepts sensor input.
type Ingestor interface {
	Add(in models.ReadingInput) (models.Reading, error)
}

// SessionControl opens and closes sessions.
type SessionControl interface {
	StartOrResume(ctx context.Context, employeeID string) (*session.StartResult, error)
	Close(ctx context.Context, employeeID string) (*session.CloseResult, error)
}

// SessionQueries reads session history and dose summaries.
type SessionQueries interface {
	History(ctx context.Context, employeeID string) ([]models.ExposureSession, error)
	DoseSummary(ctx context.Context, employeeID string) (*models.DoseSummary, error)
}

type AlertService interface {
	List(ctx context.Context, filter models.AlertFilter) (*alerting.ListResult, error)
	Acknowledge(ctx context.Context, id int64) error
	AcknowledgeAll(ctx context.Context, employeeID string) (int64, error)
}

type AttendanceService interface {
	Register(ctx context.Context, employeeID, checkType string) (*attendance.Registration, error)
	RegisterByImage(ctx context.Context, sample []byte, filename, checkType string) (*attendance.Registration, error)
	Status(ctx context.Context, employeeID string) (attendance.Status, error)
}

type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Status() aggregator.Status
	ForceUpdate(ctx context.Context, employeeID string) (*aggregator.PassResult, error)
}

// Store is the direct store access the API needs.
type Store interface {
	repository.SummaryRepository
	repository.EmployeeRepository
	GetSession(ctx context.Context, id int64) (*models.ExposureSession, error)
	SessionReadings(ctx context.Context, sessionID int64) ([]models.Reading, error)
	SessionReports(ctx context.Context, filter models.SessionReportFilter) ([]models.SessionReport, error)
	LatestReadings(ctx context.Context, limit int) ([]models.Reading, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.SafetyAlert, error)
	Ping(ctx context.Context) error
}

// Deps wires the API. WriteBehind, MQTTConnected and Metrics may be nil.
type Deps struct {
	Cache      ReadingCache
	Ingest     Ingestor
	Sessions   SessionControl
	Queries    SessionQueries
	Alerts     AlertService
	Attendance AttendanceService
	Scheduler  Scheduler
	Store      Store
	Engine     *timeengine.Engine

	WriteBehind   func() consumer.WriteBehindStats
	MQTTConnected func() bool
	Metrics       http.Handler

	// BaseContext outlives requests; the scheduler started over HTTP runs under it.
	BaseContext context.Context
}

// API holds the handlers.
type API struct {
	Deps
	logger *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *API {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	return &API{Deps: deps, logger: logger}
}
