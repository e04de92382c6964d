package safety

import "math"

// Dose-rate thresholds, µSv/h.
const (
	NaturalBackgroundRate = 0.3
	DangerRate            = 2.38
)

// Limits are dose limits in µSv per period.
type Limits struct {
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
	Annual  float64 `json:"annual"`
}

var (
	// WorkerLimits derive from 20 mSv/year for occupationally exposed workers.
	WorkerLimits = Limits{Daily: 54.8, Weekly: 383.6, Monthly: 1643.8, Annual: 20000}
	// PregnantLimits cap the remaining pregnancy at 1 mSv, about 3.7 µSv/day.
	PregnantLimits = Limits{Daily: 3.7, Weekly: 25.9, Monthly: 111, Annual: 1000}
)

// LimitsFor selects the limit table.
func LimitsFor(pregnant bool) Limits {
	if pregnant {
		return PregnantLimits
	}
	return WorkerLimits
}

// Percent returns value as a percentage of limit, 0 when limit is not positive.
func Percent(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return value / limit * 100
}

// Round rounds half away from zero to places decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// LimitCheck compares daily and annual doses against the employee's limits.
type LimitCheck struct {
	DailyLimit       float64  `json:"daily_limit"`
	AnnualLimit      float64  `json:"annual_limit"`
	DailyPercentage  float64  `json:"daily_percentage"`
	AnnualPercentage float64  `json:"annual_percentage"`
	Warnings         []string `json:"warnings"`
}

// CheckDoseLimits warns at 80% (approaching) and 100% (exceeded) of each limit.
func CheckDoseLimits(dailyDose, annualDose float64, pregnant bool) LimitCheck {
	limits := LimitsFor(pregnant)
	check := LimitCheck{
		DailyLimit:       limits.Daily,
		AnnualLimit:      limits.Annual,
		DailyPercentage:  Round(Percent(dailyDose, limits.Daily), 2),
		AnnualPercentage: Round(Percent(annualDose, limits.Annual), 2),
		Warnings:         []string{},
	}

	subject := "worker"
	if pregnant {
		subject = "pregnant worker"
	}
	switch {
	case dailyDose >= limits.Daily:
		check.Warnings = append(check.Warnings, "daily limit exceeded for "+subject)
	case dailyDose >= limits.Daily*0.8:
		check.Warnings = append(check.Warnings, "approaching daily limit for "+subject)
	}
	switch {
	case annualDose >= limits.Annual:
		check.Warnings = append(check.Warnings, "annual limit exceeded for "+subject)
	case annualDose >= limits.Annual*0.8:
		check.Warnings = append(check.Warnings, "approaching annual limit for "+subject)
	}
	return check
}
