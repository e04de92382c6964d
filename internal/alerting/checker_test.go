package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rediscommon "github.com/hosaammohammed1999-ai/radmeter1/common/redis"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
)

type recordingPublisher struct {
	alerts []models.SafetyAlert
	err    error
}

func (p *recordingPublisher) PublishAlert(_ context.Context, a models.SafetyAlert) error {
	p.alerts = append(p.alerts, a)
	return p.err
}

func TestChecker_DeduplicatesWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := now
	store := repository.NewMemoryStore(nil)
	pub := &recordingPublisher{}
	checker := NewChecker(store, pub, 5*time.Minute, func() time.Time { return clock }, zap.NewNop())

	in := Input{EmployeeID: "E1", DoseRate: 3, HasRate: true, DailyDose: 30}

	created, err := checker.Check(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{TypeDoseRateDanger, TypeDailyLimitMonitoring50}, types(created))
	assert.Len(t, pub.alerts, 2)

	clock = now.Add(4 * time.Minute)
	created, err = checker.Check(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, created)

	clock = now.Add(6 * time.Minute)
	created, err = checker.Check(ctx, in)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	unread, _ := store.UnreadCount(ctx, "E1")
	assert.Equal(t, 4, unread)
}

func TestChecker_PublishFailureKeepsAlert(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(nil)
	pub := &recordingPublisher{err: errors.New("stream down")}
	checker := NewChecker(store, pub, 0, func() time.Time { return now }, zap.NewNop())

	created, err := checker.Check(ctx, Input{EmployeeID: "E1", DailyDose: 60})
	require.NoError(t, err)
	require.Len(t, created, 1)

	list, _ := store.ListAlerts(ctx, models.AlertFilter{EmployeeID: "E1"})
	assert.Len(t, list, 1)
}

func TestStreamPublisher_WritesToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	pub := NewStreamPublisher(client, "radiation:alerts", 100)
	alert := models.SafetyAlert{ID: 7, EmployeeID: "E1", AlertType: TypeDailyLimitExceeded, AlertLevel: models.AlertLevelCritical}
	require.NoError(t, pub.PublishAlert(ctx, alert))

	msgs, err := rediscommon.ReadRange(ctx, client, "radiation:alerts", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var event AlertEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &event))
	assert.Equal(t, "safety_alert."+TypeDailyLimitExceeded, event.EventType)
	assert.Equal(t, int64(7), event.Alert.ID)
	assert.NotEmpty(t, event.EventID)

	events, err := pub.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.EventID, events[0].EventID)
}
