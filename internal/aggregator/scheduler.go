package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Scheduler defaults.
const (
	DefaultInterval      = 5 * time.Minute
	DefaultForceInterval = time.Hour
	DefaultStopTimeout   = 5 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrStopTimeout    = errors.New("scheduler did not stop in time")
)

// StaleCloser auto-closes sessions left open from previous days.
type StaleCloser interface {
	CloseStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// SchedulerOptions configure a Scheduler.
type SchedulerOptions struct {
	Interval      time.Duration
	ForceInterval time.Duration
	StopTimeout   time.Duration
	// StaleAge enables the stale-session sweep before each pass when positive.
	StaleAge time.Duration
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running       bool        `json:"running"`
	Interval      string      `json:"interval"`
	ForceInterval string      `json:"force_interval"`
	LastRun       *time.Time  `json:"last_run,omitempty"`
	LastForcedRun *time.Time  `json:"last_forced_run,omitempty"`
	NextRun       *time.Time  `json:"next_run,omitempty"`
	NextForcedRun *time.Time  `json:"next_forced_run,omitempty"`
	LastPass      *PassResult `json:"last_pass,omitempty"`
	StaleClosed   int         `json:"stale_closed"`
}

// Scheduler drives the aggregator: a forced pass on start, a regular pass
// every Interval and a forced pass every ForceInterval.
type Scheduler struct {
	agg    *Aggregator
	stale  StaleCloser
	opts   SchedulerOptions
	logger *zap.Logger

	// passMu serializes passes between the loop and ForceUpdate.
	passMu sync.Mutex

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	lastRun     time.Time
	lastForced  time.Time
	nextRun     time.Time
	nextForced  time.Time
	lastPass    *PassResult
	staleClosed int
}

// NewScheduler creates a stopped scheduler. stale may be nil.
func NewScheduler(agg *Aggregator, stale StaleCloser, opts SchedulerOptions, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ForceInterval <= 0 {
		opts.ForceInterval = DefaultForceInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	return &Scheduler{agg: agg, stale: stale, opts: opts, logger: logger}
}

// Start launches the background loop. It returns ErrAlreadyRunning if the
// loop is active.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	now := s.agg.engine.Now()
	s.nextRun = now.Add(s.opts.Interval)
	s.nextForced = now.Add(s.opts.ForceInterval)

	go s.run(loopCtx, done)

	s.logger.Info("Cumulative scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("force_interval", s.opts.ForceInterval),
	)
	return nil
}

// Stop signals the loop and waits up to StopTimeout for it to exit. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		s.logger.Info("Cumulative scheduler stopped")
		return nil
	case <-time.After(s.opts.StopTimeout):
		s.logger.Warn("Cumulative scheduler stop timed out",
			zap.Duration("timeout", s.opts.StopTimeout),
		)
		return ErrStopTimeout
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	forced := time.NewTicker(s.opts.ForceInterval)
	defer forced.Stop()

	s.pass(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-forced.C:
			s.pass(ctx, true)
		case <-ticker.C:
			s.pass(ctx, false)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, force bool) {
	s.passMu.Lock()
	defer s.passMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	closed := 0
	if s.stale != nil && s.opts.StaleAge > 0 {
		n, err := s.stale.CloseStale(ctx, s.opts.StaleAge)
		if err != nil {
			s.logger.Error("Stale session sweep failed", zap.Error(err))
		}
		closed = n
	}

	res, err := s.agg.RecomputeAll(ctx, force)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Cumulative aggregation pass failed", zap.Bool("forced", force), zap.Error(err))
	}
	s.record(res, closed)
}

func (s *Scheduler) record(res PassResult, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPass = &res
	s.staleClosed += closed
	s.lastRun = res.Finished
	s.nextRun = res.Finished.Add(s.opts.Interval)
	if res.Forced {
		s.lastForced = res.Finished
		s.nextForced = res.Finished.Add(s.opts.ForceInterval)
	}
}

// ForceUpdate runs a forced pass now, for one employee when employeeID is
// set or for everyone otherwise. It waits for a pass in progress.
func (s *Scheduler) ForceUpdate(ctx context.Context, employeeID string) (*PassResult, error) {
	if employeeID == "" {
		s.passMu.Lock()
		defer s.passMu.Unlock()
		res, err := s.agg.RecomputeAll(ctx, true)
		if err != nil {
			return nil, models.NewError(models.CodePersistence, "aggregation pass failed", err)
		}
		s.record(res, 0)
		return &res, nil
	}

	s.passMu.Lock()
	defer s.passMu.Unlock()
	started := s.agg.engine.Now()
	if _, err := s.agg.RecomputeEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return &PassResult{Forced: true, Updated: 1, Started: started, Finished: s.agg.engine.Now()}, nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:       s.cancel != nil,
		Interval:      s.opts.Interval.String(),
		ForceInterval: s.opts.ForceInterval.String(),
		LastRun:       timePtr(s.lastRun),
		LastForcedRun: timePtr(s.lastForced),
		StaleClosed:   s.staleClosed,
	}
	if st.Running {
		st.NextRun = timePtr(s.nextRun)
		st.NextForcedRun = timePtr(s.nextForced)
	}
	if s.lastPass != nil {
		p := *s.lastPass
		st.LastPass = &p
	}
	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
