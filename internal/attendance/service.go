package attendance

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/session"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Store is the persistence registration needs.
type Store interface {
	repository.AttendanceRepository
	repository.EmployeeRepository
}

// Sessions opens and closes exposure sessions.
type Sessions interface {
	StartOrResume(ctx context.Context, employeeID string) (*session.StartResult, error)
	Close(ctx context.Context, employeeID string) (*session.CloseResult, error)
}

// Registration is the outcome of an accepted intent. A failed session
// transition does not undo the attendance record; it is reported in
// ExposureError.
type Registration struct {
	Record        models.AttendanceRecord `json:"record"`
	EmployeeName  string                  `json:"employee_name,omitempty"`
	Started       *session.StartResult    `json:"started,omitempty"`
	Closed        *session.CloseResult    `json:"closed,omitempty"`
	ExposureError string                  `json:"exposure_error,omitempty"`
}

// Service registers attendance.
type Service struct {
	store    Store
	gate     *Gate
	sessions Sessions
	resolver IdentityResolver
	engine   *timeengine.Engine
	logger   *zap.Logger

	// mu makes gate check plus record atomic.
	mu sync.Mutex
}

// NewService creates the service. resolver may be nil, which disables
// image-based registration.
func NewService(store Store, sessions Sessions, resolver IdentityResolver, engine *timeengine.Engine, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		gate:     NewGate(store, engine),
		sessions: sessions,
		resolver: resolver,
		engine:   engine,
		logger:   logger,
	}
}

// Status returns today's presence for employeeID.
func (s *Service) Status(ctx context.Context, employeeID string) (Status, error) {
	if employeeID == "" {
		return Status{}, models.ValidationError("employee_id is required")
	}
	return s.gate.Status(ctx, employeeID)
}

// RegisterByImage resolves the employee from an image and registers checkType.
func (s *Service) RegisterByImage(ctx context.Context, sample []byte, filename, checkType string) (*Registration, error) {
	if s.resolver == nil {
		return nil, models.ValidationError("image identity resolution is not configured")
	}
	if err := validateCheckType(checkType); err != nil {
		return nil, err
	}
	employeeID, err := s.resolver.ResolveIdentity(ctx, sample, filename)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, employeeID, checkType)
}

// Register applies the intent gate, records the attendance and then opens or
// closes the employee's session.
func (s *Service) Register(ctx context.Context, employeeID, checkType string) (*Registration, error) {
	if employeeID == "" {
		return nil, models.ValidationError("employee_id is required")
	}
	rec, err := s.record(ctx, employeeID, checkType)
	if err != nil {
		return nil, err
	}

	reg := &Registration{Record: *rec}
	if e, err := s.store.GetEmployee(ctx, employeeID); err == nil {
		reg.EmployeeName = e.Name
	}

	switch checkType {
	case models.CheckIn:
		reg.Started, err = s.sessions.StartOrResume(ctx, employeeID)
	case models.CheckOut:
		reg.Closed, err = s.sessions.Close(ctx, employeeID)
	}
	if err != nil {
		reg.ExposureError = err.Error()
		s.logger.Warn("Attendance recorded but session transition failed",
			zap.String("employee_id", employeeID),
			zap.String("check_type", checkType),
			zap.Error(err),
		)
	}

	s.logger.Info("Attendance registered",
		zap.String("employee_id", employeeID),
		zap.String("check_type", checkType),
		zap.Int64("record_id", rec.ID),
	)
	return reg, nil
}

func (s *Service) record(ctx context.Context, employeeID, checkType string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.gate.IntentFor(ctx, employeeID, checkType); err != nil {
		return nil, err
	}
	rec := &models.AttendanceRecord{
		EmployeeID: employeeID,
		CheckType:  checkType,
		Timestamp:  s.engine.Now(),
	}
	if err := s.store.RecordAttendance(ctx, rec); err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to record attendance", err)
	}
	return rec, nil
}
