package alerting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

// DefaultDedupWindow suppresses repeats of the same alert type per employee.
const DefaultDedupWindow = 5 * time.Minute

// Checker evaluates the rules, de-duplicates against stored alerts and
// persists and publishes what is new.
type Checker struct {
	store     repository.AlertRepository
	publisher Publisher
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewChecker(store repository.AlertRepository, publisher Publisher, window time.Duration, now func() time.Time, logger *zap.Logger) *Checker {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Checker{store: store, publisher: publisher, window: window, now: now, logger: logger}
}

// Check creates the alerts that in triggers. A failure on one alert is logged
// and does not stop the others; the first error is returned.
func (c *Checker) Check(ctx context.Context, in Input) ([]models.SafetyAlert, error) {
	now := c.now()
	var (
		created  []models.SafetyAlert
		firstErr error
	)
	for _, a := range Evaluate(in, now) {
		dup, err := c.store.RecentAlertExists(ctx, a.EmployeeID, a.AlertType, now.Add(-c.window))
		if err != nil {
			c.logger.Error("Failed to check recent alerts",
				zap.String("employee_id", a.EmployeeID),
				zap.String("alert_type", a.AlertType),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if dup {
			continue
		}

		if err := c.store.CreateAlert(ctx, &a); err != nil {
			c.logger.Error("Failed to create alert",
				zap.String("employee_id", a.EmployeeID),
				zap.String("alert_type", a.AlertType),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.logger.Info("Safety alert raised",
			zap.String("employee_id", a.EmployeeID),
			zap.String("alert_type", a.AlertType),
			zap.String("alert_level", a.AlertLevel),
			zap.Float64("dose_value", a.DoseValue),
			zap.Float64("threshold_value", a.ThresholdValue),
		)
		if err := c.publisher.PublishAlert(ctx, a); err != nil {
			c.logger.Warn("Failed to publish alert",
				zap.Int64("alert_id", a.ID),
				zap.Error(err),
			)
		}
		created = append(created, a)
	}
	return created, firstErr
}
