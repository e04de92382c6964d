package consumer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqttcommon "github.com/hosaammohammed1999-ai/radmeter1/common/mqtt"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Subscriber is the part of the MQTT client the consumer uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Ingestor accepts validated sensor input.
type Ingestor interface {
	Add(in models.ReadingInput) (models.Reading, error)
}

// MQTTConsumer feeds sensor messages from topic (radmeter/{sensor_id}/data)
// into the reading cache.
type MQTTConsumer struct {
	sub    Subscriber
	topic  string
	qos    byte
	cache  Ingestor
	logger *zap.Logger
}

func NewMQTTConsumer(sub Subscriber, topic string, cache Ingestor, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{sub: sub, topic: topic, qos: 1, cache: cache, logger: logger}
}

// WithQoS overrides the subscription QoS (default 1).
func (c *MQTTConsumer) WithQoS(qos byte) *MQTTConsumer {
	if qos <= 2 {
		c.qos = qos
	}
	return c
}

// Start subscribes and blocks until ctx is cancelled.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.sub.Subscribe(c.topic, c.qos, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}
	c.logger.Info("MQTT consumer started", zap.String("topic", c.topic))

	<-ctx.Done()

	if err := c.sub.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// HandleMessage decodes one payload and caches it. The sensor id falls back
// to the second topic segment when the payload carries none.
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	in, err := models.DecodeReadingPayload(payload)
	if err != nil {
		c.logger.Warn("Rejected sensor message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}
	if in.SensorID == "" {
		if parts := strings.Split(topic, "/"); len(parts) >= 3 && parts[1] != "" {
			in.SensorID = parts[1]
		}
	}

	r, err := c.cache.Add(in)
	if err != nil {
		return err
	}
	c.logger.Debug("Cached sensor reading",
		zap.String("reading_id", r.ID),
		zap.String("sensor_id", r.SensorID),
		zap.Float64("absorbed_dose_rate", r.AbsorbedDoseRate),
	)
	return nil
}
