package timeengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatDuration renders whole seconds for display. lang is "en" (default) or "ar".
func FormatDuration(seconds decimal.Decimal, lang string) string {
	total := seconds.IntPart()
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if strings.HasPrefix(strings.ToLower(lang), "ar") {
		if days > 0 {
			parts = append(parts, fmt.Sprintf("%d يوم", days))
		}
		if hours > 0 {
			parts = append(parts, fmt.Sprintf("%d ساعة", hours))
		}
		if minutes > 0 {
			parts = append(parts, fmt.Sprintf("%d دقيقة", minutes))
		}
		if secs > 0 || len(parts) == 0 {
			parts = append(parts, fmt.Sprintf("%d ثانية", secs))
		}
		return strings.Join(parts, " ")
	}

	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, plural(secs, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Interval is a [Start, End) window.
type Interval struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// Intervals splits [start, end) into consecutive windows of step; the last one may be shorter.
func Intervals(start, end time.Time, step time.Duration) []Interval {
	if step <= 0 {
		return nil
	}
	var out []Interval
	for cur := start; cur.Before(end); {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}
		out = append(out, Interval{Start: cur, End: next, DurationMinutes: next.Sub(cur).Minutes()})
		cur = next
	}
	return out
}

// ValidateSequence reports whether ts is strictly increasing. When it is not,
// bad is the index of the first instant not after its predecessor.
func ValidateSequence(ts ...time.Time) (ok bool, bad int) {
	for i := 1; i < len(ts); i++ {
		if !ts[i].After(ts[i-1]) {
			return false, i
		}
	}
	return true, -1
}

// Business day bounds, local hours.
const (
	WorkStartHour = 8
	WorkEndHour   = 17
)

// BusinessHoursDuration counts hours of [start, end) that fall inside
// 08:00–17:00 local time on each calendar day, rounded to 0.001 h.
func (e *Engine) BusinessHoursDuration(start, end time.Time) decimal.Decimal {
	start, end = start.In(e.loc), end.In(e.loc)
	total := decimal.Zero
	for day := e.DateOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		workStart := time.Date(day.Year(), day.Month(), day.Day(), WorkStartHour, 0, 0, 0, e.loc)
		workEnd := time.Date(day.Year(), day.Month(), day.Day(), WorkEndHour, 0, 0, 0, e.loc)

		from := maxTime(start, workStart)
		to := minTime(end, workEnd)
		if from.Before(to) {
			total = total.Add(DurationOf(to.Sub(from)).Hours)
		}
	}
	return total.Round(3)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
