package models

import "time"

// CumulativeSummary is the per-employee rollup (cumulative_summary table).
// It is fully derived from sessions and readings.
type CumulativeSummary struct {
	EmployeeID string `json:"employee_id" db:"employee_id"`

	TotalSessions     int `json:"total_sessions" db:"total_sessions"`
	CompletedSessions int `json:"completed_sessions" db:"completed_sessions"`
	ActiveSessions    int `json:"active_sessions" db:"active_sessions"`

	TotalDurationMinutes      int     `json:"total_duration_minutes" db:"total_duration_minutes"`
	TotalDurationHours        float64 `json:"total_duration_hours" db:"total_duration_hours"`
	AverageSessionDurationMin float64 `json:"average_session_duration_minutes" db:"average_session_duration_minutes"`

	TotalCumulativeExposure   float64 `json:"total_cumulative_exposure" db:"total_cumulative_exposure"`
	AverageExposurePerSession float64 `json:"average_exposure_per_session" db:"average_exposure_per_session"`
	AverageDoseRatePerHour    float64 `json:"average_dose_rate_per_hour" db:"average_dose_rate_per_hour"`
	MaxSingleSessionExposure  float64 `json:"max_single_session_exposure" db:"max_single_session_exposure"`
	MinSingleSessionExposure  float64 `json:"min_single_session_exposure" db:"min_single_session_exposure"`

	DailyExposure   float64 `json:"daily_exposure" db:"daily_exposure"`
	WeeklyExposure  float64 `json:"weekly_exposure" db:"weekly_exposure"`
	MonthlyExposure float64 `json:"monthly_exposure" db:"monthly_exposure"`
	AnnualExposure  float64 `json:"annual_exposure" db:"annual_exposure"`

	DailyLimitPercentage   float64 `json:"daily_limit_percentage" db:"daily_limit_percentage"`
	WeeklyLimitPercentage  float64 `json:"weekly_limit_percentage" db:"weekly_limit_percentage"`
	MonthlyLimitPercentage float64 `json:"monthly_limit_percentage" db:"monthly_limit_percentage"`
	AnnualLimitPercentage  float64 `json:"annual_limit_percentage" db:"annual_limit_percentage"`

	SafetyStatus string `json:"safety_status" db:"safety_status"`
	SafetyClass  string `json:"safety_class" db:"safety_class"`
	RiskLevel    string `json:"risk_level" db:"risk_level"`

	TotalReadingsCount     int     `json:"total_readings_count" db:"total_readings_count"`
	AverageReadingsPerSess float64 `json:"average_readings_per_session" db:"average_readings_per_session"`

	FirstSessionDate         *time.Time `json:"first_session_date,omitempty" db:"first_session_date"`
	LastSessionDate          *time.Time `json:"last_session_date,omitempty" db:"last_session_date"`
	LastCompletedSessionDate *time.Time `json:"last_completed_session_date,omitempty" db:"last_completed_session_date"`

	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// DoseSummary answers get-dose-summary for one employee.
type DoseSummary struct {
	EmployeeID      string           `json:"employee_id"`
	IsPregnant      bool             `json:"is_pregnant"`
	DailyDose       float64          `json:"daily_dose"`
	CumulativeDose  float64          `json:"cumulative_dose"`
	DailyLimit      float64          `json:"daily_limit"`
	AnnualLimit     float64          `json:"annual_limit"`
	DailyPercentage float64          `json:"daily_percentage"`
	AnnualPercent   float64          `json:"annual_percentage"`
	Warnings        []string         `json:"warnings"`
	ActiveSession   *ExposureSession `json:"active_session,omitempty"`
}
