// Package aggregator rebuilds per-employee cumulative summaries from session
// history and runs the periodic recompute schedule.
package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/safety"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Bucket horizons in days, inclusive, counted back from today.
const (
	WeeklyDays  = 7
	MonthlyDays = 30
	AnnualDays  = 365
)

// ComputeSummary derives the summary from sessions (in any order) and the
// employee's stored reading count. It is deterministic for a given now.
func ComputeSummary(employeeID string, sessions []models.ExposureSession, readingCount int, engine *timeengine.Engine, now time.Time) models.CumulativeSummary {
	today := engine.DateOf(now)
	limits := safety.WorkerLimits

	cs := models.CumulativeSummary{
		EmployeeID:         employeeID,
		TotalSessions:      len(sessions),
		TotalReadingsCount: readingCount,
		LastUpdated:        now,
	}

	total, daily, weekly, monthly, annual := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	var (
		maxExp, minExp             decimal.Decimal
		withExposure               int
		first, last, lastCompleted *time.Time
	)
	for i := range sessions {
		s := &sessions[i]
		date := s.SessionDate
		if first == nil || date.Before(*first) {
			first = &date
		}
		if last == nil || date.After(*last) {
			last = &date
		}

		if s.IsActive {
			cs.ActiveSessions++
			continue
		}
		cs.CompletedSessions++
		if lastCompleted == nil || date.After(*lastCompleted) {
			lastCompleted = &date
		}
		if !s.Completed() {
			continue
		}

		exp := decimal.NewFromFloat(*s.TotalExposure)
		if withExposure == 0 || exp.GreaterThan(maxExp) {
			maxExp = exp
		}
		if withExposure == 0 || exp.LessThan(minExp) {
			minExp = exp
		}
		withExposure++
		total = total.Add(exp)
		if s.DurationMinutes != nil {
			cs.TotalDurationMinutes += *s.DurationMinutes
		}

		age := engine.DaysBetween(date, today)
		if age < 0 {
			continue
		}
		if age == 0 {
			daily = daily.Add(exp)
		}
		if age <= WeeklyDays {
			weekly = weekly.Add(exp)
		}
		if age <= MonthlyDays {
			monthly = monthly.Add(exp)
		}
		if age <= AnnualDays {
			annual = annual.Add(exp)
		}
	}

	hours := decimal.NewFromInt(int64(cs.TotalDurationMinutes)).Div(decimal.NewFromInt(60))
	cs.TotalDurationHours = hours.Round(4).InexactFloat64()
	cs.TotalCumulativeExposure = round6(total)
	cs.MaxSingleSessionExposure = round6(maxExp)
	cs.MinSingleSessionExposure = round6(minExp)
	if withExposure > 0 {
		n := decimal.NewFromInt(int64(withExposure))
		cs.AverageSessionDurationMin = decimal.NewFromInt(int64(cs.TotalDurationMinutes)).Div(n).Round(2).InexactFloat64()
		cs.AverageExposurePerSession = round6(total.Div(n))
	}
	if hours.IsPositive() {
		cs.AverageDoseRatePerHour = round6(total.Div(hours))
	}
	if cs.TotalSessions > 0 {
		cs.AverageReadingsPerSess = safety.Round(float64(readingCount)/float64(cs.TotalSessions), 2)
	}

	cs.DailyExposure = round6(daily)
	cs.WeeklyExposure = round6(weekly)
	cs.MonthlyExposure = round6(monthly)
	cs.AnnualExposure = round6(annual)
	cs.DailyLimitPercentage = safety.Round(safety.Percent(cs.DailyExposure, limits.Daily), 2)
	cs.WeeklyLimitPercentage = safety.Round(safety.Percent(cs.WeeklyExposure, limits.Weekly), 2)
	cs.MonthlyLimitPercentage = safety.Round(safety.Percent(cs.MonthlyExposure, limits.Monthly), 2)
	cs.AnnualLimitPercentage = safety.Round(safety.Percent(cs.AnnualExposure, limits.Annual), 2)

	tier := safety.ClassifyAnnual(cs.AnnualLimitPercentage)
	cs.SafetyStatus, cs.SafetyClass, cs.RiskLevel = tier.Status, tier.Class, tier.Risk

	cs.FirstSessionDate = first
	cs.LastSessionDate = last
	cs.LastCompletedSessionDate = lastCompleted
	return cs
}

func round6(d decimal.Decimal) float64 {
	return d.Round(timeengine.ExposurePlaces).InexactFloat64()
}
