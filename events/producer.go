// Package events publishes conversion lifecycle events to Kafka so
// downstream consumers (billing, analytics) can react without polling.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
)

const (
	TypeTaskCompleted  = "task.completed"
	TypeTaskFailed     = "task.failed"
	TypeTaskCancelled  = "task.cancelled"
	TypeBatchCompleted = "batch.completed"
)

// Event is one lifecycle notification, keyed by the task or batch id.
type Event struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Operation  string    `json:"operation,omitempty"`
	ResultURL  string    `json:"result_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	Completed  int       `json:"completed,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Producer interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &kafkaProducer{producer: p, topic: topic}, nil
}

func (p *kafkaProducer) Publish(ctx context.Context, event *Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}

// NopProducer discards events. Used when Kafka is not configured and
// in tests.
type NopProducer struct{}

func (NopProducer) Publish(ctx context.Context, event *Event) error { return nil }
func (NopProducer) Close() error                                    { return nil }
