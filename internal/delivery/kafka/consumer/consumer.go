package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/vcping/internal/delivery/kafka"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

const rejoinBackoff = time.Second

// Dispatcher accepts relayed voice-state changes.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw domain.RawVoiceState) error
}

type Consumer struct {
	consGr sarama.ConsumerGroup
	disp   Dispatcher
	l      logger.Logger
	wg     sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	disp Dispatcher,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr: consGr,
		disp:   disp,
		l:      l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicVoiceStateUpdated:
		return c.HandleVoiceStateUpdated(ctx, msg)
	default:
		c.l.Warnf(ctx, "Unknown topic %s", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicVoiceStateUpdated}
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
			}

			select {
			case <-ctx.Done():
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			case <-time.After(rejoinBackoff):
			}
		}
	})

	// Handle errors
	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

// ConsumeClaim hands a partition's messages to the dispatcher one at a
// time. A community maps to one partition, so its changes keep their order.
// A dispatch failure ends the claim without marking the message, so the
// next session resumes from it instead of committing past it.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				c.l.Errorf(ss.Context(), "delivery.kafka.consumer.consumer.ConsumeClaim: topic %s offset %d: %v",
					message.Topic, message.Offset, err)
				return err
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
