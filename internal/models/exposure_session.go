package models

import "time"

// Exposure method tiers recorded on close.
const (
	ExposureMethodIntegral     = "integral"
	ExposureMethodCounterDelta = "counter_delta"
	ExposureMethodRateEstimate = "rate_estimate"
	ExposureMethodNone         = "none"
)

// AutoCloseNote is appended to sessions closed by the stale-session sweep.
const AutoCloseNote = "[auto-closed]"

// ExposureSession is one employee's attribution window (exposure_sessions table).
// Pointer fields are null while the session is open.
type ExposureSession struct {
	ID                 int64      `json:"id" db:"id"`
	EmployeeID         string     `json:"employee_id" db:"employee_id"`
	SessionDate        time.Time  `json:"session_date" db:"session_date"`
	CheckInTime        time.Time  `json:"check_in_time" db:"check_in_time"`
	CheckOutTime       *time.Time `json:"check_out_time,omitempty" db:"check_out_time"`
	InitialTotalDose   float64    `json:"initial_total_dose" db:"initial_total_dose"`
	FinalTotalDose     *float64   `json:"final_total_dose,omitempty" db:"final_total_dose"`
	DurationMinutes    *int       `json:"exposure_duration_minutes,omitempty" db:"exposure_duration_minutes"`
	AverageDoseRate    *float64   `json:"average_dose_rate,omitempty" db:"average_dose_rate"`
	TotalExposure      *float64   `json:"total_exposure,omitempty" db:"total_exposure"`
	MaxDoseRate        *float64   `json:"max_dose_rate,omitempty" db:"max_dose_rate"`
	MinDoseRate        *float64   `json:"min_dose_rate,omitempty" db:"min_dose_rate"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	DailyTotalExposure *float64   `json:"daily_total_exposure,omitempty" db:"daily_total_exposure"`
	ExposureMethod     string     `json:"exposure_method,omitempty" db:"exposure_method"`
	Notes              string     `json:"notes,omitempty" db:"notes"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// Completed reports whether the session was closed with an exposure figure.
func (s *ExposureSession) Completed() bool {
	return !s.IsActive && s.TotalExposure != nil
}

// SessionReportFilter selects sessions for exposure reporting. From and To
// are inclusive session dates; a zero value leaves that side open.
type SessionReportFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
}

// SessionReport is a session with the employee's display name, empty when
// no profile exists.
type SessionReport struct {
	ExposureSession
	EmployeeName string `json:"employee_name"`
}

// ExposureStatistics aggregates a set of session reports. The average is
// over completed sessions only.
type ExposureStatistics struct {
	Employees         int     `json:"employees"`
	Sessions          int     `json:"sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	TotalExposure     float64 `json:"total_exposure"`
	AverageExposure   float64 `json:"average_exposure"`
	MaxExposure       float64 `json:"max_exposure"`
}

func NewExposureStatistics(reports []SessionReport) ExposureStatistics {
	st := ExposureStatistics{Sessions: len(reports)}
	employees := make(map[string]struct{})
	for _, r := range reports {
		employees[r.EmployeeID] = struct{}{}
		if r.IsActive {
			st.ActiveSessions++
		}
		if r.TotalExposure == nil {
			continue
		}
		st.CompletedSessions++
		st.TotalExposure += *r.TotalExposure
		if *r.TotalExposure > st.MaxExposure {
			st.MaxExposure = *r.TotalExposure
		}
	}
	st.Employees = len(employees)
	if st.CompletedSessions > 0 {
		st.AverageExposure = st.TotalExposure / float64(st.CompletedSessions)
	}
	return st
}

// Employee is the profile used for limit selection.
type Employee struct {
	EmployeeID string `json:"employee_id" db:"employee_id"`
	Name       string `json:"name" db:"name"`
	IsPregnant bool   `json:"is_pregnant" db:"is_pregnant"`
}

// Check types for attendance intents.
const (
	CheckIn  = "check_in"
	CheckOut = "check_out"
)

// AttendanceRecord is one accepted check-in/check-out.
type AttendanceRecord struct {
	ID         int64     `json:"id" db:"id"`
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	CheckType  string    `json:"check_type" db:"check_type"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}
