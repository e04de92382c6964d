package alerting

import (
	"context"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

// ListResult is a page of alerts plus the unread count for the same scope.
type ListResult struct {
	Alerts      []models.SafetyAlert `json:"alerts"`
	UnreadCount int                  `json:"unread_count"`
	Limit       int                  `json:"limit"`
}

// Service serves alert queries and acknowledgements.
type Service struct {
	store repository.AlertRepository
}

func NewService(store repository.AlertRepository) *Service {
	return &Service{store: store}
}

// List returns alerts newest first.
func (s *Service) List(ctx context.Context, filter models.AlertFilter) (*ListResult, error) {
	filter.Limit = repository.ClampAlertLimit(filter.Limit)
	alerts, err := s.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to list alerts", err)
	}
	unread, err := s.store.UnreadCount(ctx, filter.EmployeeID)
	if err != nil {
		return nil, models.NewError(models.CodePersistence, "failed to count unread alerts", err)
	}
	if alerts == nil {
		alerts = []models.SafetyAlert{}
	}
	return &ListResult{Alerts: alerts, UnreadCount: unread, Limit: filter.Limit}, nil
}

func (s *Service) Acknowledge(ctx context.Context, id int64) error {
	err := s.store.AcknowledgeAlert(ctx, id)
	switch {
	case err == nil:
		return nil
	case models.CodeOf(err) == models.CodeNotFound:
		return models.NewError(models.CodeNotFound, "alert not found", nil)
	default:
		return models.NewError(models.CodePersistence, "failed to acknowledge alert", err)
	}
}

// AcknowledgeAll marks every unread alert read, optionally for one employee.
func (s *Service) AcknowledgeAll(ctx context.Context, employeeID string) (int64, error) {
	n, err := s.store.AcknowledgeAll(ctx, employeeID)
	if err != nil {
		return 0, models.NewError(models.CodePersistence, "failed to acknowledge alerts", err)
	}
	return n, nil
}
