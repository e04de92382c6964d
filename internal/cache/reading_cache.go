// Package cache holds recent sensor readings in memory ahead of write-behind
// persistence.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Options configure a ReadingCache.
type Options struct {
	MaxReadings     int
	Retention       time.Duration
	DefaultSensorID string
}

// DefaultOptions match the deployed sensor setup.
func DefaultOptions() Options {
	return Options{MaxReadings: 100, Retention: time.Hour, DefaultSensorID: "ESP32_001"}
}

type entry struct {
	reading   models.Reading
	persisted bool
	attempts  int
}

// ReadingCache is a bounded, insertion-ordered buffer of readings. Capacity
// eviction only drops readings that are already persisted, so the cache can
// exceed MaxReadings while the store is unavailable.
type ReadingCache struct {
	mu      sync.Mutex
	entries []*entry
	opts    Options
	engine  *timeengine.Engine
	logger  *zap.Logger

	overCapacity bool
}

// New creates an empty cache. Timestamps come from engine's clock.
func New(opts Options, engine *timeengine.Engine, logger *zap.Logger) *ReadingCache {
	if opts.MaxReadings <= 0 {
		opts.MaxReadings = DefaultOptions().MaxReadings
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}
	if opts.DefaultSensorID == "" {
		opts.DefaultSensorID = DefaultOptions().DefaultSensorID
	}
	return &ReadingCache{
		opts:   opts,
		engine: engine,
		logger: logger,
	}
}

// Add validates in, stamps it with the current time and appends it.
// It never touches the store.
func (c *ReadingCache) Add(in models.ReadingInput) (models.Reading, error) {
	if err := in.Validate(); err != nil {
		return models.Reading{}, err
	}
	sensorID := in.SensorID
	if sensorID == "" {
		sensorID = c.opts.DefaultSensorID
	}
	r := models.Reading{
		ID:                uuid.NewString(),
		CPM:               in.CPM,
		SourcePower:       in.SourcePower,
		AbsorbedDoseRate:  in.AbsorbedDoseRate,
		TotalAbsorbedDose: in.TotalAbsorbedDose,
		SensorID:          sensorID,
		Timestamp:         c.engine.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &entry{reading: r})
	c.evictLocked()
	return r, nil
}

// evictLocked drops the oldest persisted readings until the cache fits.
func (c *ReadingCache) evictLocked() {
	for len(c.entries) > c.opts.MaxReadings {
		idx := -1
		for i, e := range c.entries {
			if e.persisted {
				idx = i
				break
			}
		}
		if idx < 0 {
			if !c.overCapacity {
				c.logger.Warn("Reading cache over capacity with only unsaved readings",
					zap.Int("size", len(c.entries)),
					zap.Int("max_readings", c.opts.MaxReadings),
				)
				c.overCapacity = true
			}
			return
		}
		c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	}
	c.overCapacity = false
}

// Latest returns the most recently added reading.
func (c *ReadingCache) Latest() (models.Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return models.Reading{}, false
	}
	return c.entries[len(c.entries)-1].reading, true
}

// Since returns readings with a timestamp at or after t, in insertion order.
func (c *ReadingCache) Since(t time.Time) []models.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Reading
	for _, e := range c.entries {
		if !e.reading.Timestamp.Before(t) {
			out = append(out, e.reading)
		}
	}
	return out
}

// Recent returns up to n of the newest readings, oldest first.
func (c *ReadingCache) Recent(n int) []models.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := len(c.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Reading, 0, len(c.entries)-start)
	for _, e := range c.entries[start:] {
		out = append(out, e.reading)
	}
	return out
}

// AverageRecentRate averages the dose rate of the last n readings.
func (c *ReadingCache) AverageRecentRate(n int) (float64, bool) {
	recent := c.Recent(n)
	if len(recent) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range recent {
		sum += r.AbsorbedDoseRate
	}
	return sum / float64(len(recent)), true
}

// Unsaved returns the readings still waiting for persistence, oldest first.
func (c *ReadingCache) Unsaved() []models.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Reading
	for _, e := range c.entries {
		if !e.persisted {
			out = append(out, e.reading)
		}
	}
	return out
}

// MarkSaved flags r as persisted. It reports false if r is no longer cached.
func (c *ReadingCache) MarkSaved(r models.Reading) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(r.ID)
	if e == nil {
		return false
	}
	e.persisted = true
	e.attempts = 0
	c.evictLocked()
	return true
}

// MarkSaveFailed counts a failed attempt; the reading stays unsaved.
func (c *ReadingCache) MarkSaveFailed(r models.Reading) (attempts int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findLocked(r.ID)
	if e == nil {
		return 0, false
	}
	e.attempts++
	return e.attempts, true
}

func (c *ReadingCache) findLocked(id string) *entry {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].reading.ID == id {
			return c.entries[i]
		}
	}
	return nil
}

// Stats returns a point-in-time summary.
func (c *ReadingCache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := models.CacheStats{Total: len(c.entries), MaxReadings: c.opts.MaxReadings}
	for _, e := range c.entries {
		if e.persisted {
			stats.Saved++
		} else {
			stats.Unsaved++
		}
		stats.FailedSaves += e.attempts
	}
	if len(c.entries) > 0 {
		oldest := c.entries[0].reading.Timestamp
		newest := c.entries[len(c.entries)-1].reading.Timestamp
		stats.OldestTs = &oldest
		stats.NewestTs = &newest
	}
	return stats
}

// Snapshot copies every entry with its persistence state.
func (c *ReadingCache) Snapshot() []models.CachedReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CachedReading, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, models.CachedReading{Reading: e.reading, Persisted: e.persisted, SaveAttempts: e.attempts})
	}
	return out
}

// Sweep removes persisted readings older than the retention window and
// returns how many were removed. Unsaved readings are kept regardless of age.
func (c *ReadingCache) Sweep() int {
	cutoff := c.engine.Now().Add(-c.opts.Retention)

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.entries[:0]
	removed := 0
	for _, e := range c.entries {
		if e.persisted && e.reading.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = nil
	}
	c.entries = kept
	return removed
}

// Clear drops everything, including unsaved readings.
func (c *ReadingCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = nil
	c.overCapacity = false
	return n
}

// Warm loads stored readings (oldest first) ahead of any live ones. They are
// already durable, so they are marked persisted and keep their timestamps.
func (c *ReadingCache) Warm(readings []models.Reading) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	warmed := make([]*entry, 0, len(readings)+len(c.entries))
	for _, r := range readings {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.SessionID = nil
		warmed = append(warmed, &entry{reading: r, persisted: true})
	}
	c.entries = append(warmed, c.entries...)
	c.evictLocked()
	return len(readings)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (c *ReadingCache) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				c.logger.Info("Swept persisted readings from cache",
					zap.Int("removed", removed),
					zap.Duration("retention", c.opts.Retention),
				)
			}
		}
	}
}
