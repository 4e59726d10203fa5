package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/plantphoto/internal/config"
	"github.com/aliskhannn/plantphoto/internal/model"
)

// sender is the part of a Kafka producer the Producer needs.
type sender interface {
	SendWithRetry(ctx context.Context, s retry.Strategy, key, value []byte) error
	Close() error
}

// clientSender adapts the wbf producer to sender.
type clientSender struct {
	client *wbfkafka.Producer
}

func (c clientSender) SendWithRetry(ctx context.Context, s retry.Strategy, key, value []byte) error {
	return c.client.SendWithRetry(ctx, s, key, value)
}

func (c clientSender) Close() error {
	return c.client.Close()
}

// Producer publishes photo analysis tasks to Kafka.
type Producer struct {
	client   sender
	strategy retry.Strategy
	topic    string
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return newProducer(clientSender{client: client}, cfg.Topic, s)
}

func newProducer(client sender, topic string, s retry.Strategy) *Producer {
	return &Producer{
		client:   client,
		strategy: s,
		topic:    topic,
	}
}

// Produce serializes the task to JSON and sends it to Kafka.
// The photo ID is used as the message key for partitioning and ordering.
func (p *Producer) Produce(ctx context.Context, task model.PhotoTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	key := []byte(task.ID.String())

	if err = p.client.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send task to %s: %w", p.topic, err)
	}

	return nil
}

// Close closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.client.Close()
}
