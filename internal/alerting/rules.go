// Package alerting raises de-duplicated safety alerts from dose rate, daily
// dose and annual dose, and serves the alert list.
package alerting

import (
	"fmt"
	"time"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/safety"
)

// Alert types
const (
	TypeDoseRateDanger          = "dose_rate_danger"
	TypeDoseRateWarning         = "dose_rate_warning"
	TypeDailyLimitExceeded      = "daily_limit_exceeded"
	TypeDailyLimitWarning80     = "daily_limit_warning_80"
	TypeDailyLimitMonitoring50  = "daily_limit_monitoring_50"
	TypeAnnualLimitExceeded     = "annual_limit_exceeded"
	TypeAnnualLimitWarning80    = "annual_limit_warning_80"
	TypeAnnualLimitMonitoring50 = "annual_limit_monitoring_50"
)

// Input is one employee's current exposure picture.
type Input struct {
	EmployeeID string
	Name       string
	IsPregnant bool
	// DoseRate is only evaluated when HasRate is set, i.e. while the
	// employee has an open session.
	DoseRate   float64
	HasRate    bool
	DailyDose  float64
	AnnualDose float64
}

// Evaluate returns at most one alert per category: the most severe rule that
// matches. It does not de-duplicate.
func Evaluate(in Input, now time.Time) []models.SafetyAlert {
	name := in.Name
	if name == "" {
		name = in.EmployeeID
	}
	limits := safety.LimitsFor(in.IsPregnant)

	var out []models.SafetyAlert
	add := func(alertType, category, level, msg string, value, threshold float64) {
		out = append(out, models.SafetyAlert{
			EmployeeID:     in.EmployeeID,
			AlertType:      alertType,
			Category:       category,
			AlertLevel:     level,
			Message:        msg,
			DoseValue:      value,
			ThresholdValue: threshold,
			Timestamp:      now,
		})
	}

	if in.HasRate {
		switch {
		case in.DoseRate > safety.DangerRate:
			add(TypeDoseRateDanger, models.AlertCategoryDoseRate, models.AlertLevelDanger,
				fmt.Sprintf("Dangerous dose rate for %s: %.2f µSv/h (limit %.2f µSv/h)", name, in.DoseRate, safety.DangerRate),
				in.DoseRate, safety.DangerRate)
		case in.DoseRate > safety.NaturalBackgroundRate:
			add(TypeDoseRateWarning, models.AlertCategoryDoseRate, models.AlertLevelWarning,
				fmt.Sprintf("Elevated dose rate for %s: %.2f µSv/h (above natural background %.1f µSv/h)", name, in.DoseRate, safety.NaturalBackgroundRate),
				in.DoseRate, safety.NaturalBackgroundRate)
		}
	}

	dailyPct := safety.Percent(in.DailyDose, limits.Daily)
	switch {
	case in.DailyDose >= limits.Daily:
		add(TypeDailyLimitExceeded, models.AlertCategoryDailyLimit, models.AlertLevelCritical,
			fmt.Sprintf("Daily limit exceeded for %s: %.2f µSv (%.1f%%), limit %.1f µSv", name, in.DailyDose, dailyPct, limits.Daily),
			in.DailyDose, limits.Daily)
	case dailyPct >= 80:
		add(TypeDailyLimitWarning80, models.AlertCategoryDailyLimit, models.AlertLevelWarning,
			fmt.Sprintf("Approaching daily limit for %s: %.2f µSv (%.1f%%), limit %.1f µSv", name, in.DailyDose, dailyPct, limits.Daily),
			in.DailyDose, limits.Daily)
	case dailyPct >= 50:
		add(TypeDailyLimitMonitoring50, models.AlertCategoryDailyLimit, models.AlertLevelInfo,
			fmt.Sprintf("Half of daily limit reached for %s: %.2f µSv (%.1f%%), limit %.1f µSv", name, in.DailyDose, dailyPct, limits.Daily),
			in.DailyDose, limits.Daily)
	}

	annualPct := safety.Percent(in.AnnualDose, limits.Annual)
	switch {
	case in.AnnualDose >= limits.Annual:
		add(TypeAnnualLimitExceeded, models.AlertCategoryAnnualLimit, models.AlertLevelCritical,
			fmt.Sprintf("Annual limit exceeded for %s: %.2f µSv (%.1f%%), limit %.1f mSv", name, in.AnnualDose, annualPct, limits.Annual/1000),
			in.AnnualDose, limits.Annual)
	case annualPct >= 80:
		add(TypeAnnualLimitWarning80, models.AlertCategoryAnnualLimit, models.AlertLevelWarning,
			fmt.Sprintf("Approaching annual limit for %s: %.2f µSv (%.1f%%), limit %.1f mSv", name, in.AnnualDose, annualPct, limits.Annual/1000),
			in.AnnualDose, limits.Annual)
	case annualPct >= 50:
		add(TypeAnnualLimitMonitoring50, models.AlertCategoryAnnualLimit, models.AlertLevelInfo,
			fmt.Sprintf("Half of annual limit reached for %s: %.2f µSv (%.1f%%), limit %.1f mSv", name, in.AnnualDose, annualPct, limits.Annual/1000),
			in.AnnualDose, limits.Annual)
	}
	return out
}
