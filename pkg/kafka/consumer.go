package kafka

import (
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

const clientID = "vcping"

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	// FromOldest replays retained events on a group's first start instead
	// of only reading new ones.
	FromOldest bool
}

func NewConsumer(cfg ConsumerConfig) (sarama.ConsumerGroup, error) {
	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, NewConsumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	log.Printf("Kafka consumer connected to brokers: %v, group: %s\n", cfg.Brokers, cfg.GroupID)

	return consGroup, nil
}

// NewConsumerConfig keeps partition ownership sticky across rebalances so a
// guild's events stay on one member of the group.
func NewConsumerConfig(cfg ConsumerConfig) *sarama.Config {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = clientID
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaCfg.Consumer.Return.Errors = true

	return saramaCfg
}
