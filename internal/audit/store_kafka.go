package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"fitgate/internal/platform/kafka/producer"
)

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaStore publishes events as JSON keyed by tenant id, so all events of a
// tenant land on one partition in order.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(p Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(_ context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.producer.ProduceAsync(&producer.Message{
		Topic: s.topic,
		Key:   []byte(event.TenantID),
		Value: value,
		Headers: map[string]string{
			"action": string(event.Action),
		},
	})
}
