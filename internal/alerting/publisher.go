package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	rediscommon "github.com/hosaammohammed1999-ai/radmeter1/common/redis"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Publisher fans created alerts out to other consumers.
type Publisher interface {
	PublishAlert(ctx context.Context, a models.SafetyAlert) error
}

// NopPublisher drops alerts; used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishAlert(context.Context, models.SafetyAlert) error { return nil }

// AlertEvent is the stream payload.
type AlertEvent struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	Alert       models.SafetyAlert `json:"alert"`
	PublishedAt time.Time          `json:"published_at"`
}

// StreamPublisher appends alerts to a Redis Stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) PublishAlert(ctx context.Context, a models.SafetyAlert) error {
	_, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, AlertEvent{
		EventID:     uuid.New().String(),
		EventType:   "safety_alert." + a.AlertType,
		Alert:       a,
		PublishedAt: time.Now(),
	})
	return err
}

// Recent returns up to count events from the head of the stream, oldest first.
func (p *StreamPublisher) Recent(ctx context.Context, count int64) ([]AlertEvent, error) {
	msgs, err := rediscommon.ReadRange(ctx, p.client, p.stream, "-", "+", count)
	if err != nil {
		return nil, err
	}
	events := make([]AlertEvent, 0, len(msgs))
	for _, m := range msgs {
		data, _ := m.Values["data"].(string)
		var ev AlertEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", m.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
