package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// RecentActivityWindow marks an employee as active when a session was created
// within it.
const RecentActivityWindow = time.Hour

// Store is the persistence the aggregator reads and writes.
type Store interface {
	repository.SessionRepository
	repository.SummaryRepository
	repository.EmployeeRepository
	CountEmployeeReadings(ctx context.Context, employeeID string) (int, error)
}

// AlertChecker raises alerts from a fresh summary.
type AlertChecker interface {
	Check(ctx context.Context, in alerting.Input) ([]models.SafetyAlert, error)
}

// RateSource supplies the latest measured dose rate.
type RateSource interface {
	Latest() (models.Reading, bool)
}

// PassResult counts the outcome of one aggregation pass.
type PassResult struct {
	Forced   bool      `json:"forced"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Alerts   int       `json:"alerts"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Aggregator owns cumulative_summary writes.
type Aggregator struct {
	store    Store
	engine   *timeengine.Engine
	alerts   AlertChecker
	rate     RateSource
	interval time.Duration
	logger   *zap.Logger
}

// New creates an aggregator. interval is the staleness horizon for the skip
// check; alerts and rate may be nil.
func New(store Store, engine *timeengine.Engine, alerts AlertChecker, rate RateSource, interval time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		engine:   engine,
		alerts:   alerts,
		rate:     rate,
		interval: interval,
		logger:   logger,
	}
}

// RecomputeAll recomputes every employee with session history. A failure for
// one employee is counted and logged and the pass continues. Cancelling ctx
// stops the pass after the employee in progress.
func (a *Aggregator) RecomputeAll(ctx context.Context, force bool) (PassResult, error) {
	res := PassResult{Forced: force, Started: a.engine.Now()}
	employees, err := a.store.EmployeesWithSessions(ctx)
	if err != nil {
		res.Finished = a.engine.Now()
		return res, fmt.Errorf("failed to list employees: %w", err)
	}

	for _, employeeID := range employees {
		if ctx.Err() != nil {
			break
		}
		// finish the current employee even if ctx is cancelled meanwhile
		updated, alerts, err := a.recompute(context.WithoutCancel(ctx), employeeID, force)
		switch {
		case err != nil:
			res.Failed++
			a.logger.Error("Failed to recompute cumulative summary",
				zap.String("employee_id", employeeID),
				zap.Error(err),
			)
		case updated:
			res.Updated++
		default:
			res.Skipped++
		}
		res.Alerts += alerts
	}
	res.Finished = a.engine.Now()

	a.logger.Info("Cumulative aggregation pass finished",
		zap.Bool("forced", force),
		zap.Int("employees", len(employees)),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("alerts", res.Alerts),
		zap.Duration("took", res.Finished.Sub(res.Started)),
	)
	return res, ctx.Err()
}

// RecomputeEmployee unconditionally rebuilds one employee's summary.
func (a *Aggregator) RecomputeEmployee(ctx context.Context, employeeID string) (*models.CumulativeSummary, error) {
	if employeeID == "" {
		return nil, models.ValidationError("employee_id is required")
	}
	if _, _, err := a.recompute(ctx, employeeID, true); err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to recompute summary", err)
	}
	cs, err := a.store.GetSummary(ctx, employeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to read summary", err)
	}
	return cs, nil
}

func (a *Aggregator) recompute(ctx context.Context, employeeID string, force bool) (updated bool, alerts int, err error) {
	now := a.engine.Now()
	if !force {
		fresh, err := a.isFresh(ctx, employeeID, now)
		if err != nil {
			return false, 0, err
		}
		if fresh {
			return false, 0, nil
		}
	}

	sessions, err := a.store.EmployeeSessions(ctx, employeeID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to read sessions: %w", err)
	}
	readings, err := a.store.CountEmployeeReadings(ctx, employeeID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count readings: %w", err)
	}

	cs := ComputeSummary(employeeID, sessions, readings, a.engine, now)
	if err := a.store.UpsertSummary(ctx, &cs); err != nil {
		return false, 0, fmt.Errorf("failed to upsert summary: %w", err)
	}
	a.logger.Debug("Updated cumulative summary",
		zap.String("employee_id", employeeID),
		zap.Float64("annual_exposure", cs.AnnualExposure),
		zap.String("safety_class", cs.SafetyClass),
	)

	return true, a.checkAlerts(ctx, &cs), nil
}

// isFresh reports that the summary can be skipped: no open or recently created
// session and an update within the interval.
func (a *Aggregator) isFresh(ctx context.Context, employeeID string, now time.Time) (bool, error) {
	active, err := a.store.HasRecentActivity(ctx, employeeID, now.Add(-RecentActivityWindow))
	if err != nil {
		return false, fmt.Errorf("failed to check activity: %w", err)
	}
	if active {
		return false, nil
	}
	cs, err := a.store.GetSummary(ctx, employeeID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read summary: %w", err)
	}
	return now.Sub(cs.LastUpdated) < a.interval, nil
}

func (a *Aggregator) checkAlerts(ctx context.Context, cs *models.CumulativeSummary) int {
	if a.alerts == nil {
		return 0
	}
	in := alerting.Input{
		EmployeeID: cs.EmployeeID,
		DailyDose:  cs.DailyExposure,
		AnnualDose: cs.AnnualExposure,
	}
	if e, err := a.store.GetEmployee(ctx, cs.EmployeeID); err == nil {
		in.Name = e.Name
		in.IsPregnant = e.IsPregnant
	}
	if cs.ActiveSessions > 0 && a.rate != nil {
		if r, ok := a.rate.Latest(); ok {
			in.DoseRate, in.HasRate = r.AbsorbedDoseRate, true
		}
	}

	created, err := a.alerts.Check(ctx, in)
	if err != nil {
		a.logger.Warn("Alert check incomplete",
			zap.String("employee_id", cs.EmployeeID),
			zap.Error(err),
		)
	}
	return len(created)
}
