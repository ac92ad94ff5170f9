package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/vcping/internal/delivery/kafka"
)

// HandleVoiceStateUpdated forwards a relayed change to the dispatcher. A
// payload that does not decode is logged and skipped so it cannot wedge
// the partition.
func (c *Consumer) HandleVoiceStateUpdated(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.VoiceStateEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Warnf(ctx, "delivery.kafka.consumer.handlers.HandleVoiceStateUpdated: dropping malformed event at offset %d: %v", message.Offset, err)
		return nil
	}

	if e.CommunityID == "" || e.UserID == "" {
		c.l.Warnf(ctx, "delivery.kafka.consumer.handlers.HandleVoiceStateUpdated: dropping event %s without community or user", e.TraceID)
		return nil
	}

	if err := c.disp.Dispatch(ctx, e.ToDomain()); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleVoiceStateUpdated: %v", err)
		return err
	}

	return nil
}
