package queue

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	"github.com/docstore-labs/deptdocs-api/pkg/config"
)

// Publisher writes JSON job messages to the extraction topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a Kafka producer for the configured topic.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish marshals payload as JSON and writes it keyed by key.
func (p *Publisher) Publish(ctx context.Context, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write job message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads job messages as part of a consumer group.
// Offsets are committed explicitly so a crashed handler causes redelivery.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer builds a Kafka group consumer for the configured topic.
func NewConsumer(cfg config.KafkaConfig) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
	}
}

// Fetch blocks until a message is available or ctx is done.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit acknowledges the given messages.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
