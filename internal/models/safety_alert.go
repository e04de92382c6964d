package models

import "time"

// Alert levels
const (
	AlertLevelInfo     = "info"
	AlertLevelWarning  = "warning"
	AlertLevelDanger   = "danger"
	AlertLevelCritical = "critical"
)

// Alert categories
const (
	AlertCategoryDoseRate    = "dose_rate"
	AlertCategoryDailyLimit  = "daily_limit"
	AlertCategoryAnnualLimit = "annual_limit"
)

// SafetyAlert is an immutable safety event (safety_alerts table); only
// Acknowledged changes after creation.
type SafetyAlert struct {
	ID             int64     `json:"id" db:"id"`
	EmployeeID     string    `json:"employee_id" db:"employee_id"`
	AlertType      string    `json:"alert_type" db:"alert_type"`
	Category       string    `json:"category" db:"category"`
	AlertLevel     string    `json:"alert_level" db:"alert_level"`
	Message        string    `json:"message" db:"message"`
	DoseValue      float64   `json:"dose_value" db:"dose_value"`
	ThresholdValue float64   `json:"threshold_value" db:"threshold_value"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Acknowledged   bool      `json:"acknowledged" db:"acknowledged"`
}

// AlertFilter selects alerts for listing.
type AlertFilter struct {
	EmployeeID string
	UnreadOnly bool
	Limit      int
}
