// Package consumer moves readings between the cache and the outside world:
// write-behind persistence into the store and MQTT ingestion into the cache.
package consumer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/cache"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Write-behind defaults.
const (
	DefaultInterval       = 30 * time.Second
	DefaultFailureBackoff = 60 * time.Second
)

// ReadingStore is the persistence the write-behind loop needs.
type ReadingStore interface {
	Ping(ctx context.Context) error
	SaveReading(ctx context.Context, r models.Reading) ([]int64, error)
}

// CachePublisher mirrors the cache view after each pass.
type CachePublisher interface {
	Publish(ctx context.Context, c *cache.ReadingCache) error
}

// WriteBehindStats are cumulative counters since start.
type WriteBehindStats struct {
	Passes       int64     `json:"passes"`
	Saved        int64     `json:"saved"`
	Failed       int64     `json:"failed"`
	StoreErrors  int64     `json:"store_errors"`
	LastPassTime time.Time `json:"last_pass_time"`
}

// WriteBehind persists unsaved cached readings on a fixed cadence and never
// gives up: a reading that fails stays unsaved and is retried next pass.
type WriteBehind struct {
	cache    *cache.ReadingCache
	store    ReadingStore
	mirror   CachePublisher
	interval time.Duration
	backoff  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	passes      atomic.Int64
	saved       atomic.Int64
	failed      atomic.Int64
	storeErrors atomic.Int64
	lastPass    atomic.Int64
}

// NewWriteBehind creates the loop. mirror may be nil; now defaults to time.Now.
func NewWriteBehind(c *cache.ReadingCache, store ReadingStore, mirror CachePublisher, interval, backoff time.Duration,
	now func() time.Time, logger *zap.Logger) *WriteBehind {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if backoff <= 0 {
		backoff = DefaultFailureBackoff
	}
	if now == nil {
		now = time.Now
	}
	return &WriteBehind{
		cache:    c,
		store:    store,
		mirror:   mirror,
		interval: interval,
		backoff:  backoff,
		now:      now,
		logger:   logger,
	}
}

// Run loops until ctx is cancelled: a pass, then Interval after success or
// FailureBackoff after a store-level failure.
func (w *WriteBehind) Run(ctx context.Context) error {
	w.logger.Info("Write-behind started",
		zap.Duration("interval", w.interval),
		zap.Duration("failure_backoff", w.backoff),
	)
	for {
		wait := w.interval
		if _, _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Write-behind pass failed",
				zap.Error(err),
				zap.Duration("backoff", w.backoff),
			)
			wait = w.backoff
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Write-behind stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// RunOnce persists every unsaved reading once. Per-reading failures are
// counted on the reading and do not fail the pass; an unreachable store does.
func (w *WriteBehind) RunOnce(ctx context.Context) (saved, failed int, err error) {
	w.passes.Add(1)
	w.lastPass.Store(w.now().UnixNano())
	defer w.publish(ctx)

	pending := w.cache.Unsaved()
	if len(pending) == 0 {
		return 0, 0, nil
	}
	if err := w.store.Ping(ctx); err != nil {
		w.storeErrors.Add(1)
		return 0, 0, fmt.Errorf("store unavailable: %w", err)
	}

	for _, r := range pending {
		if ctx.Err() != nil {
			break
		}
		sessions, err := w.store.SaveReading(ctx, r)
		if err != nil {
			attempts, _ := w.cache.MarkSaveFailed(r)
			failed++
			w.logger.Warn("Failed to persist reading",
				zap.String("reading_id", r.ID),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			continue
		}
		w.cache.MarkSaved(r)
		saved++
		w.logger.Debug("Persisted reading",
			zap.String("reading_id", r.ID),
			zap.Int("sessions", len(sessions)),
		)
	}

	w.saved.Add(int64(saved))
	w.failed.Add(int64(failed))
	if saved > 0 || failed > 0 {
		w.logger.Info("Write-behind pass finished",
			zap.Int("saved", saved),
			zap.Int("failed", failed),
		)
	}
	return saved, failed, nil
}

// Flush runs a final pass, typically on shutdown.
func (w *WriteBehind) Flush(ctx context.Context) {
	if _, _, err := w.RunOnce(ctx); err != nil {
		w.logger.Warn("Final write-behind flush failed", zap.Error(err))
	}
}

func (w *WriteBehind) publish(ctx context.Context) {
	if w.mirror == nil || ctx.Err() != nil {
		return
	}
	if err := w.mirror.Publish(ctx, w.cache); err != nil {
		w.logger.Warn("Failed to mirror reading cache", zap.Error(err))
	}
}

// Stats returns the cumulative counters.
func (w *WriteBehind) Stats() WriteBehindStats {
	st := WriteBehindStats{
		Passes:      w.passes.Load(),
		Saved:       w.saved.Load(),
		Failed:      w.failed.Load(),
		StoreErrors: w.storeErrors.Load(),
	}
	if ns := w.lastPass.Load(); ns > 0 {
		st.LastPassTime = time.Unix(0, ns)
	}
	return st
}
