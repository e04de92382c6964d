package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Presence states derived from today's last attendance record.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Status is an employee's attendance state for today.
type Status struct {
	EmployeeID    string     `json:"employee_id"`
	Status        string     `json:"status"`
	LastAction    string     `json:"last_action,omitempty"`
	LastTimestamp *time.Time `json:"last_timestamp,omitempty"`
}

// Present reports whether the last action today was a check-in.
func (s Status) Present() bool { return s.Status == StatusPresent }

// Gate decides whether a check intent is allowed.
type Gate struct {
	store  repository.AttendanceRepository
	engine *timeengine.Engine
}

func NewGate(store repository.AttendanceRepository, engine *timeengine.Engine) *Gate {
	return &Gate{store: store, engine: engine}
}

// Status reads today's presence. No record today means absent.
func (g *Gate) Status(ctx context.Context, employeeID string) (Status, error) {
	st := Status{EmployeeID: employeeID, Status: StatusAbsent}
	last, err := g.store.LastAttendance(ctx, employeeID, g.engine.Today())
	if errors.Is(err, repository.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return st, models.NewError(models.CodePersistence, "failed to read attendance", err)
	}
	ts := last.Timestamp
	st.LastAction, st.LastTimestamp = last.CheckType, &ts
	if last.CheckType == models.CheckIn {
		st.Status = StatusPresent
	}
	return st, nil
}

// IntentFor returns nil when checkType is allowed, ErrDuplicateCheckIn for a
// check-in while present and ErrCheckOutWithoutCheckIn for a check-out while
// absent.
func (g *Gate) IntentFor(ctx context.Context, employeeID, checkType string) error {
	if err := validateCheckType(checkType); err != nil {
		return err
	}
	st, err := g.Status(ctx, employeeID)
	if err != nil {
		return err
	}
	switch {
	case checkType == models.CheckIn && st.Present():
		return models.ErrDuplicateCheckIn
	case checkType == models.CheckOut && !st.Present():
		return models.ErrCheckOutWithoutCheckIn
	}
	return nil
}

func validateCheckType(checkType string) error {
	if checkType != models.CheckIn && checkType != models.CheckOut {
		return models.ValidationError("check_type must be %q or %q", models.CheckIn, models.CheckOut)
	}
	return nil
}
