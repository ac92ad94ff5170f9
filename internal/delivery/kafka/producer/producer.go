package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/vcping/internal/delivery/kafka"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

type Producer interface {
	PublishVoiceState(ctx context.Context, raw domain.RawVoiceState) error
	PublishActivated(ctx context.Context, tn domain.Transition) error
	PublishDeactivated(ctx context.Context, tn domain.Transition) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
	now  func() time.Time
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
		now:  time.Now,
	}
}

// PublishVoiceState relays one raw voice-state change. Keying by community
// keeps a community's changes on one partition, in gateway order.
func (p *implProducer) PublishVoiceState(ctx context.Context, raw domain.RawVoiceState) error {
	if raw.TraceID == "" {
		raw.TraceID = uuid.NewString()
	}

	event := kafka.NewVoiceStateEvent(raw)
	event.Timestamp = p.now()

	if err := p.send(ctx, kafka.TopicVoiceStateUpdated, event.CommunityID, event.TraceID, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishVoiceState: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) PublishActivated(ctx context.Context, tn domain.Transition) error {
	if err := p.publishTransition(ctx, kafka.TopicChannelActivated, tn, domain.ChannelStatusActive); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishActivated: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) PublishDeactivated(ctx context.Context, tn domain.Transition) error {
	if err := p.publishTransition(ctx, kafka.TopicChannelDeactivated, tn, domain.ChannelStatusEmpty); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishDeactivated: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) publishTransition(ctx context.Context, topic string, tn domain.Transition, status domain.ChannelStatus) error {
	event := kafka.NewChannelTransitionEvent(tn, status)
	event.EventID = uuid.NewString()
	event.Timestamp = p.now()

	return p.send(ctx, topic, event.CommunityID, event.EventID, event)
}

func (p *implProducer) send(ctx context.Context, topic, key, eventID string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(p.now().Format(time.RFC3339)),
			},
			{
				Key:   []byte(kafka.HeaderEventID),
				Value: []byte(eventID),
			},
		},
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		return err
	}

	p.l.Debugf(ctx, "Published %s to partition %d at offset %d", topic, partition, offset)
	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
