// Package safety tiers dose rates and accumulated doses into safety verdicts.
package safety

import "math"

// Tier is the severity bucket of a verdict.
type Tier string

const (
	TierSafe       Tier = "safe"
	TierMonitoring Tier = "monitoring"
	TierWarning    Tier = "warning"
	TierDanger     Tier = "danger"
	TierCritical   Tier = "critical"
)

// Risk levels reported alongside a verdict.
const (
	RiskVeryLow   = "very low"
	RiskLow       = "low"
	RiskLowMedium = "low-medium"
	RiskMedium    = "medium"
	RiskHigh      = "high"
	RiskVeryHigh  = "very high"
	RiskCritical  = "critical"
)

// Verdict is the classification result. Percentage is the reported safety
// margin: 100 is fully safe, 0 is at or beyond a limit.
type Verdict struct {
	Tier       Tier    `json:"tier"`
	Status     string  `json:"status"`
	Percentage float64 `json:"percentage"`
	RiskLevel  string  `json:"risk_level"`
	IsPregnant bool    `json:"is_pregnant"`
}

type override struct {
	fraction float64
	ceiling  float64
	tier     Tier
	status   string
	risk     string
}

// Escalations below the full limit, highest first. They only apply when the
// rate tier was Safe.
var (
	workerOverrides = []override{
		{0.9, 15, TierWarning, "Warning - approaching daily limit", RiskHigh},
		{0.75, 35, TierMonitoring, "Monitoring - three quarters of daily limit", RiskMedium},
		{0.5, 65, TierMonitoring, "Monitoring - half of daily limit", RiskLowMedium},
	}
	pregnantOverrides = []override{
		{0.8, 20, TierWarning, "Warning - approaching pregnant daily limit", RiskHigh},
		{0.5, 50, TierMonitoring, "Monitoring - half of pregnant daily limit", RiskMedium},
	}
)

// Classify tiers the hourly dose rate first, then lets the session total
// escalate the verdict against the daily limit.
func Classify(doseRatePerHour, totalDose float64, durationMinutes int, isPregnant bool) Verdict {
	v := classifyRate(doseRatePerHour, isPregnant)

	limit := LimitsFor(isPregnant).Daily
	overrides := workerOverrides
	if isPregnant {
		overrides = pregnantOverrides
	}

	if totalDose >= limit {
		v.Tier = TierCritical
		v.Status = "Critical - daily limit exceeded"
		if isPregnant {
			v.Status = "Critical - pregnant daily limit exceeded"
		}
		v.RiskLevel = RiskCritical
		v.Percentage = 0
		return v
	}

	for _, o := range overrides {
		if totalDose < limit*o.fraction {
			continue
		}
		if v.Tier == TierSafe {
			v.Tier = o.tier
			v.Status = o.status
			v.RiskLevel = o.risk
			v.Percentage = math.Min(v.Percentage, o.ceiling)
		}
		break
	}
	return v
}

func classifyRate(rate float64, isPregnant bool) Verdict {
	v := Verdict{IsPregnant: isPregnant}
	switch {
	case rate <= NaturalBackgroundRate:
		v.Tier, v.Status, v.RiskLevel = TierSafe, "Safe", RiskVeryLow
		v.Percentage = 100
	case rate < DangerRate:
		v.Tier, v.Status, v.RiskLevel = TierWarning, "Warning", RiskMedium
		v.Percentage = Round(100-(rate-NaturalBackgroundRate)/(DangerRate-NaturalBackgroundRate)*50, 1)
	default:
		v.Tier, v.Status, v.RiskLevel = TierDanger, "Danger", RiskHigh
		v.Percentage = math.Max(0, Round(50-(rate-DangerRate)/DangerRate*50, 1))
	}
	if isPregnant {
		v.Status += " - pregnant"
	}
	return v
}

// AnnualVerdict is the summary-level tier derived from annual exposure.
type AnnualVerdict struct {
	Status string `json:"safety_status"`
	Class  string `json:"safety_class"`
	Risk   string `json:"risk_level"`
}

// ClassifyAnnual maps an annual limit percentage to a summary tier.
func ClassifyAnnual(annualPercentage float64) AnnualVerdict {
	switch {
	case annualPercentage >= 100:
		return AnnualVerdict{Status: "Danger", Class: "danger", Risk: RiskVeryHigh}
	case annualPercentage >= 80:
		return AnnualVerdict{Status: "Warning", Class: "warning", Risk: RiskHigh}
	case annualPercentage >= 50:
		return AnnualVerdict{Status: "Monitoring", Class: "info", Risk: RiskMedium}
	default:
		return AnnualVerdict{Status: "Safe", Class: "success", Risk: RiskLow}
	}
}
