// Package session owns the per-employee exposure session lifecycle:
// open or resume on check-in, integrate and close on check-out.
package session

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/safety"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// Store is the persistence the manager needs.
type Store interface {
	repository.SessionRepository
	repository.ReadingRepository
	repository.EmployeeRepository
}

// DoseProvider returns the instrument's current cumulative dose.
type DoseProvider interface {
	CurrentTotalDose(ctx context.Context) float64
}

// RateProvider returns a recent average dose rate.
type RateProvider interface {
	RecentDoseRate(ctx context.Context) float64
}

// Manager opens and closes exposure sessions. Check-and-create and close are
// serialized per employee in process; the store's single-active-session
// constraint covers other processes.
type Manager struct {
	store  Store
	engine *timeengine.Engine
	dose   DoseProvider
	rate   RateProvider
	logger *zap.Logger

	locks [lockShards]sync.Mutex
}

// lockShards is the size of the per-employee lock table. Employees that
// hash to the same shard serialize against each other.
const lockShards = 64

func NewManager(store Store, engine *timeengine.Engine, dose DoseProvider, rate RateProvider, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		engine: engine,
		dose:   dose,
		rate:   rate,
		logger: logger,
	}
}

func lockShard(employeeID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(employeeID))
	return int(h.Sum32() % lockShards)
}

func (m *Manager) lock(employeeID string) func() {
	mu := &m.locks[lockShard(employeeID)]
	mu.Lock()
	return mu.Unlock
}

// StartResult is returned by StartOrResume.
type StartResult struct {
	Session *models.ExposureSession `json:"session"`
	Resumed bool                    `json:"resumed"`
	// AccumulatedExposure is current counter minus initial counter, for
	// display on resume only.
	AccumulatedExposure float64 `json:"accumulated_exposure,omitempty"`
	CurrentTotalDose    float64 `json:"current_total_dose"`
}

// StartOrResume returns the employee's open session, or opens a new one for
// today. Calling it twice in a row yields the same session.
func (m *Manager) StartOrResume(ctx context.Context, employeeID string) (*StartResult, error) {
	if employeeID == "" {
		return nil, models.ValidationError("employee_id is required")
	}
	unlock := m.lock(employeeID)
	defer unlock()

	active, err := m.store.ActiveSessions(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read active sessions", err)
	}
	current := m.dose.CurrentTotalDose(ctx)

	// The store admits one active session per employee; stale ones from a
	// previous day are closed by CloseStale.
	if len(active) > 0 {
		return m.resumed(&active[0], current), nil
	}

	now := m.engine.Now()
	es := &models.ExposureSession{
		EmployeeID:       employeeID,
		SessionDate:      m.engine.DateOf(now),
		CheckInTime:      now,
		InitialTotalDose: current,
		IsActive:         true,
	}
	err = m.store.CreateSession(ctx, es)
	if errors.Is(err, repository.ErrActiveSessionExists) {
		active, err = m.store.ActiveSessions(ctx, employeeID)
		if err != nil {
			return nil, models.NewError(models.CodePersistence, "failed to read active sessions", err)
		}
		if len(active) == 0 {
			return nil, models.NewError(models.CodePersistence, "active session vanished during create", nil)
		}
		return m.resumed(&active[0], current), nil
	}
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to create session", err)
	}

	m.logger.Info("Started exposure session",
		zap.String("employee_id", employeeID),
		zap.Int64("session_id", es.ID),
		zap.Float64("initial_total_dose", es.InitialTotalDose),
	)
	return &StartResult{Session: es, CurrentTotalDose: current}, nil
}

func (m *Manager) resumed(es *models.ExposureSession, current float64) *StartResult {
	accumulated := decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(es.InitialTotalDose)).Round(timeengine.ExposurePlaces)
	m.logger.Info("Resumed exposure session",
		zap.String("employee_id", es.EmployeeID),
		zap.Int64("session_id", es.ID),
		zap.Time("session_date", es.SessionDate),
	)
	return &StartResult{
		Session:             es,
		Resumed:             true,
		AccumulatedExposure: accumulated.InexactFloat64(),
		CurrentTotalDose:    current,
	}
}

// CloseResult is returned by Close.
type CloseResult struct {
	Session              *models.ExposureSession `json:"session"`
	DurationMinutes      int                     `json:"duration_minutes"`
	DurationHours        float64                 `json:"duration_hours"`
	DurationSeconds      float64                 `json:"duration_seconds"`
	DurationFormatted    string                  `json:"duration_formatted"`
	DurationFormattedAr  string                  `json:"duration_formatted_ar"`
	ExposureMethod       string                  `json:"exposure_method"`
	IsPregnant           bool                    `json:"is_pregnant"`
	DailyLimit           float64                 `json:"daily_limit"`
	DailyLimitPercentage float64                 `json:"daily_limit_percentage"`
	AnnualProjection     float64                 `json:"annual_projection"`
	Classification       safety.Verdict          `json:"classification"`
}

// Close integrates the open session's readings up to now and closes it.
func (m *Manager) Close(ctx context.Context, employeeID string) (*CloseResult, error) {
	if employeeID == "" {
		return nil, models.ValidationError("employee_id is required")
	}
	unlock := m.lock(employeeID)
	defer unlock()

	active, err := m.store.ActiveSessions(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read active sessions", err)
	}
	if len(active) == 0 {
		return nil, models.NewError(models.CodeNoActiveSession, "no active session for employee "+employeeID, nil)
	}
	es := active[0]

	now := m.engine.Now()
	if now.Before(es.CheckInTime) {
		now = es.CheckInTime
	}
	dur := m.engine.Duration(es.CheckInTime, now)

	readings, err := m.store.SessionReadings(ctx, es.ID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read session readings", err)
	}
	if len(readings) == 0 {
		readings, err = m.store.UnattributedReadings(ctx, es.CheckInTime, now)
		if err != nil {
			return nil, models.NewError(models.CodePersistence, "failed to read readings in window", err)
		}
	}

	finalDose := m.dose.CurrentTotalDose(ctx)
	exposure, method := m.estimateExposure(ctx, readings, es.CheckInTime, now, es.InitialTotalDose, finalDose, dur.Hours)
	total := exposure.InexactFloat64()

	avgRate := 0.0
	if dur.Hours.IsPositive() {
		avgRate = exposure.Div(dur.Hours).Round(timeengine.ExposurePlaces).InexactFloat64()
	}
	stats, err := m.store.DoseRateStats(ctx, es.CheckInTime, now)
	if err != nil {
		m.logger.Warn("Failed to read dose rate stats",
			zap.Int64("session_id", es.ID),
			zap.Error(err),
		)
	}
	if stats.Avg > 0 {
		avgRate = stats.Avg
	}

	minutes := dur.WholeMinutes()
	es.CheckOutTime = &now
	es.FinalTotalDose = &finalDose
	es.DurationMinutes = &minutes
	es.AverageDoseRate = &avgRate
	es.TotalExposure = &total
	es.DailyTotalExposure = &total
	es.ExposureMethod = method
	if stats.Count > 0 {
		maxRate, minRate := stats.Max, stats.Min
		es.MaxDoseRate = &maxRate
		es.MinDoseRate = &minRate
	}

	if err := m.store.CompleteSession(ctx, &es); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewError(models.CodeNoActiveSession, "session was closed concurrently", err)
		}
		return nil, models.NewError(models.CodePersistence, "failed to close session", err)
	}

	pregnant := m.IsPregnant(ctx, employeeID)
	limit := safety.LimitsFor(pregnant).Daily
	res := &CloseResult{
		Session:              &es,
		DurationMinutes:      minutes,
		DurationHours:        dur.Hours.Round(6).InexactFloat64(),
		DurationSeconds:      dur.Seconds.Round(3).InexactFloat64(),
		DurationFormatted:    timeengine.FormatDuration(dur.Seconds, "en"),
		DurationFormattedAr:  timeengine.FormatDuration(dur.Seconds, "ar"),
		ExposureMethod:       method,
		IsPregnant:           pregnant,
		DailyLimit:           limit,
		DailyLimitPercentage: safety.Round(safety.Percent(total, limit), 3),
		AnnualProjection:     exposure.Mul(decimal.NewFromInt(365)).Round(3).InexactFloat64(),
		Classification:       safety.Classify(avgRate, total, minutes, pregnant),
	}

	m.logger.Info("Closed exposure session",
		zap.String("employee_id", employeeID),
		zap.Int64("session_id", es.ID),
		zap.String("exposure_method", method),
		zap.Float64("total_exposure", total),
		zap.Int("duration_minutes", minutes),
		zap.Int("readings", len(readings)),
		zap.String("safety_tier", string(res.Classification.Tier)),
	)
	return res, nil
}

// estimateExposure applies the integral, then the counter delta, then the
// recent rate times duration. The returned method names the tier used.
func (m *Manager) estimateExposure(ctx context.Context, readings []models.Reading, start, end time.Time,
	initialDose, finalDose float64, hours decimal.Decimal) (decimal.Decimal, string) {
	samples := make([]timeengine.RateSample, len(readings))
	for i, r := range readings {
		samples[i] = timeengine.RateSample{Rate: r.AbsorbedDoseRate, At: r.Timestamp}
	}
	if total, ok := timeengine.IntegrateSession(samples, start, end); ok {
		return total, models.ExposureMethodIntegral
	}

	delta := decimal.NewFromFloat(finalDose).Sub(decimal.NewFromFloat(initialDose))
	if delta.IsPositive() {
		return delta.Round(timeengine.ExposurePlaces), models.ExposureMethodCounterDelta
	}

	if rate := m.rate.RecentDoseRate(ctx); rate > 0 && hours.IsPositive() {
		return timeengine.IntegrateDose(rate, hours), models.ExposureMethodRateEstimate
	}
	return decimal.Zero, models.ExposureMethodNone
}

// CloseStale auto-closes open sessions from a previous day whose check-in is
// older than maxAge. Exposure fields are left null.
func (m *Manager) CloseStale(ctx context.Context, maxAge time.Duration) (int, error) {
	active, err := m.store.ActiveSessions(ctx, "")
	if err != nil {
		return 0, models.NewError(models.CodePersistence, "failed to read active sessions", err)
	}
	today := m.engine.Today()
	cutoff := m.engine.Now().Add(-maxAge)

	closed := 0
	for _, s := range active {
		if !s.SessionDate.Before(today) || !s.CheckInTime.Before(cutoff) {
			continue
		}
		if m.closeStaleOne(ctx, s) {
			closed++
		}
	}
	return closed, nil
}

func (m *Manager) closeStaleOne(ctx context.Context, s models.ExposureSession) bool {
	unlock := m.lock(s.EmployeeID)
	defer unlock()

	err := m.store.AutoCloseSession(ctx, s.ID, models.AutoCloseNote)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		m.logger.Error("Failed to auto-close stale session",
			zap.String("employee_id", s.EmployeeID),
			zap.Int64("session_id", s.ID),
			zap.Error(err),
		)
		return false
	}
	m.logger.Info("Auto-closed stale session",
		zap.String("employee_id", s.EmployeeID),
		zap.Int64("session_id", s.ID),
		zap.Time("check_in_time", s.CheckInTime),
	)
	return true
}

// ActiveSession returns the employee's open session or nil.
func (m *Manager) ActiveSession(ctx context.Context, employeeID string) (*models.ExposureSession, error) {
	active, err := m.store.ActiveSessions(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read active sessions", err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

// History lists the employee's sessions, newest first.
func (m *Manager) History(ctx context.Context, employeeID string) ([]models.ExposureSession, error) {
	sessions, err := m.store.EmployeeSessions(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read sessions", err)
	}
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	if sessions == nil {
		sessions = []models.ExposureSession{}
	}
	return sessions, nil
}

// IsPregnant looks up the employee profile; unknown employees use worker limits.
func (m *Manager) IsPregnant(ctx context.Context, employeeID string) bool {
	e, err := m.store.GetEmployee(ctx, employeeID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("Failed to read employee profile",
				zap.String("employee_id", employeeID),
				zap.Error(err),
			)
		}
		return false
	}
	return e.IsPregnant
}

// DoseSummary reports today's and cumulative dose against the employee's limits.
func (m *Manager) DoseSummary(ctx context.Context, employeeID string) (*models.DoseSummary, error) {
	if employeeID == "" {
		return nil, models.ValidationError("employee_id is required")
	}
	daily, err := m.store.DailyExposure(ctx, employeeID, m.engine.Today())
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read daily exposure", err)
	}
	cumulative, err := m.store.CumulativeExposure(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read cumulative exposure", err)
	}
	active, err := m.ActiveSession(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	pregnant := m.IsPregnant(ctx, employeeID)
	check := safety.CheckDoseLimits(daily, cumulative, pregnant)
	return &models.DoseSummary{
		EmployeeID:      employeeID,
		IsPregnant:      pregnant,
		DailyDose:       safety.Round(daily, timeengine.ExposurePlaces),
		CumulativeDose:  safety.Round(cumulative, timeengine.ExposurePlaces),
		DailyLimit:      check.DailyLimit,
		AnnualLimit:     check.AnnualLimit,
		DailyPercentage: check.DailyPercentage,
		AnnualPercent:   check.AnnualPercentage,
		Warnings:        check.Warnings,
		ActiveSession:   active,
	}, nil
}
