package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Reading is one sensor sample. Values are immutable once created.
type Reading struct {
	ID                string    `json:"id"`
	CPM               int       `json:"cpm"`
	SourcePower       float64   `json:"source_power"`
	AbsorbedDoseRate  float64   `json:"absorbed_dose_rate"`  // µSv/h
	TotalAbsorbedDose float64   `json:"total_absorbed_dose"` // µSv, instrument counter
	SensorID          string    `json:"sensor_id"`
	Timestamp         time.Time `json:"timestamp"`
	SessionID         *int64    `json:"session_id,omitempty"` // set on stored rows only
}

// ReadingInput carries the ingestion fields before validation.
type ReadingInput struct {
	CPM               int
	SourcePower       float64
	AbsorbedDoseRate  float64
	TotalAbsorbedDose float64
	SensorID          string
}

// Validate checks ranges of an already decoded input.
func (in ReadingInput) Validate() error {
	if in.CPM < 0 {
		return ValidationError("cpm must be >= 0, got %d", in.CPM)
	}
	if math.IsNaN(in.SourcePower) || math.IsInf(in.SourcePower, 0) {
		return ValidationError("source_power must be a finite number")
	}
	if !(in.AbsorbedDoseRate >= 0) || math.IsInf(in.AbsorbedDoseRate, 0) {
		return ValidationError("absorbed_dose must be a finite number >= 0 (µSv/h)")
	}
	if !(in.TotalAbsorbedDose >= 0) || math.IsInf(in.TotalAbsorbedDose, 0) {
		return ValidationError("total_dose must be a finite number >= 0 (µSv)")
	}
	return nil
}

// DecodeReadingPayload parses the sensor JSON payload
// {"cpm", "source_power", "absorbed_dose", "total_dose", "sensor_id"?}.
// Numbers may be sent as JSON numbers or numeric strings.
func DecodeReadingPayload(data []byte) (ReadingInput, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReadingInput{}, ValidationError("payload is not a JSON object")
	}

	var in ReadingInput
	cpm, err := numberField(raw, "cpm")
	if err != nil {
		return ReadingInput{}, err
	}
	if cpm != math.Trunc(cpm) || cpm > math.MaxInt32 {
		return ReadingInput{}, ValidationError("cpm must be an integer")
	}
	in.CPM = int(cpm)

	if in.SourcePower, err = numberField(raw, "source_power"); err != nil {
		return ReadingInput{}, err
	}
	if in.AbsorbedDoseRate, err = numberField(raw, "absorbed_dose", "absorbed_dose_rate"); err != nil {
		return ReadingInput{}, err
	}
	if in.TotalAbsorbedDose, err = numberField(raw, "total_dose", "total_absorbed_dose"); err != nil {
		return ReadingInput{}, err
	}
	if s, ok := raw["sensor_id"].(string); ok {
		in.SensorID = s
	}

	return in, in.Validate()
}

func numberField(raw map[string]any, keys ...string) (float64, error) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return 0, ValidationError("%s is not numeric: %q", key, n)
			}
			return f, nil
		default:
			return 0, ValidationError("%s is not numeric", key)
		}
	}
	return 0, ValidationError("missing required field %s", keys[0])
}

// String is used in log lines.
func (r Reading) String() string {
	return fmt.Sprintf("reading %s rate=%.4f total=%.4f at %s", r.ID, r.AbsorbedDoseRate, r.TotalAbsorbedDose, r.Timestamp.Format(time.RFC3339))
}

// CachedReading is a cache snapshot entry.
type CachedReading struct {
	Reading
	Persisted    bool `json:"persisted"`
	SaveAttempts int  `json:"save_attempts"`
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Total       int        `json:"total_readings"`
	Saved       int        `json:"saved_readings"`
	Unsaved     int        `json:"unsaved_readings"`
	FailedSaves int        `json:"failed_save_attempts"`
	MaxReadings int        `json:"max_readings"`
	OldestTs    *time.Time `json:"oldest_timestamp,omitempty"`
	NewestTs    *time.Time `json:"newest_timestamp,omitempty"`
}

// DoseRateStats aggregates dose rates over a window.
type DoseRateStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
}
