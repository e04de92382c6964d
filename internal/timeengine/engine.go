// Package timeengine normalizes timestamps into the deployment zone and does
// the exact-decimal duration and dose arithmetic used for exposure accounting.
package timeengine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// ExposurePlaces is the precision of every exposure increment (µSv).
const ExposurePlaces = 6

var (
	secondsPerMinute = decimal.NewFromInt(60)
	secondsPerHour   = decimal.NewFromInt(3600)
	secondsPerDay    = decimal.NewFromInt(86400)
)

// naive layouts are interpreted in the engine's local zone.
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var awareLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// Engine binds a deployment time zone and a clock.
type Engine struct {
	loc   *time.Location
	clock Clock
}

// New returns an engine for loc. A nil clock means the system clock.
func New(loc *time.Location, clock Clock) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{loc: loc, clock: clock}
}

func (e *Engine) Location() *time.Location { return e.loc }

// Now is the current instant in the local zone.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Today is local midnight of the current day.
func (e *Engine) Today() time.Time {
	return e.DateOf(e.Now())
}

// DateOf truncates t to local midnight of its calendar day.
func (e *Engine) DateOf(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// DaysBetween counts calendar days from a to b (b later gives a positive result).
// Dates are compared by their local calendar day, ignoring the time of day.
func (e *Engine) DaysBetween(a, b time.Time) int {
	ay, am, ad := a.In(e.loc).Date()
	by, bm, bd := b.In(e.loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Normalize converts a timestamp-like value into an instant in the local zone.
// Accepts time.Time, *time.Time and strings. Strings carrying an offset or Z
// are parsed as aware; the rest are read as local wall-clock time.
func (e *Engine) Normalize(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, models.NewError(models.CodeTimeParse, "zero timestamp", nil)
		}
		return t.In(e.loc), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, models.NewError(models.CodeTimeParse, "nil timestamp", nil)
		}
		return e.Normalize(*t)
	case string:
		return e.parse(strings.TrimSpace(t))
	default:
		return time.Time{}, models.NewError(models.CodeTimeParse, "unsupported timestamp type", nil)
	}
}

func (e *Engine) parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, models.NewError(models.CodeTimeParse, "empty timestamp", nil)
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(e.loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, e.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, models.NewError(models.CodeTimeParse, "unrecognized timestamp format: "+s, nil)
}

// Duration is an elapsed interval decomposed in exact decimals.
type Duration struct {
	Seconds decimal.Decimal `json:"seconds"`
	Minutes decimal.Decimal `json:"minutes"`
	Hours   decimal.Decimal `json:"hours"`
	Days    decimal.Decimal `json:"days"`
}

// WholeMinutes truncates toward zero.
func (d Duration) WholeMinutes() int {
	return int(d.Minutes.IntPart())
}

// Duration measures end - start with nanosecond resolution and no float steps.
func (e *Engine) Duration(start, end time.Time) Duration {
	return DurationOf(end.Sub(start))
}

// DurationOf decomposes d.
func DurationOf(d time.Duration) Duration {
	seconds := decimal.New(int64(d), -9)
	return Duration{
		Seconds: seconds,
		Minutes: seconds.Div(secondsPerMinute),
		Hours:   seconds.Div(secondsPerHour),
		Days:    seconds.Div(secondsPerDay),
	}
}

// IntegrateDose returns rate (µSv/h) × hours rounded half-up to six places.
func IntegrateDose(rate float64, hours decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(rate).Mul(hours).Round(ExposurePlaces)
}
