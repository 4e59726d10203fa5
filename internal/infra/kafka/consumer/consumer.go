package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/config"
)

const (
	fetchBackoff  = 500 * time.Millisecond
	handleBackoff = 5 * time.Second
)

// uploadedHandler defines the interface for handling uploaded photo messages.
type uploadedHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// client is the part of a Kafka consumer the Consumer needs.
type client interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// clientReader adapts the wbf consumer to client.
type clientReader struct {
	c *wbfkafka.Consumer
}

func (r clientReader) Fetch(ctx context.Context) (kafka.Message, error) {
	return r.c.Fetch(ctx)
}

func (r clientReader) Commit(ctx context.Context, msg kafka.Message) error {
	return r.c.Commit(ctx, msg)
}

func (r clientReader) Close() error {
	return r.c.Close()
}

// Consumer reads photo tasks from Kafka and hands them to the uploaded
// photo handler.
type Consumer struct {
	client          client
	uploadedHandler uploadedHandler
	topic           string
	strategy        retry.Strategy
	handleBackoff   time.Duration
}

// New creates a new Consumer.
// - cfg: Kafka configuration struct
// - s: retry strategy
// - uh: handler for processing uploaded photo messages
func New(
	cfg *config.Kafka,
	s retry.Strategy,
	uh uploadedHandler,
) *Consumer {
	c := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return newConsumer(clientReader{c: c}, cfg.Topic, s, uh)
}

func newConsumer(c client, topic string, s retry.Strategy, uh uploadedHandler) *Consumer {
	// retry.Do with zero attempts returns nil without calling the handler.
	if s.Attempts < 1 {
		s.Attempts = 1
	}

	return &Consumer{
		client:          c,
		uploadedHandler: uh,
		topic:           topic,
		strategy:        s,
		handleBackoff:   handleBackoff,
	}
}

// Consume continuously fetches messages from Kafka, processes them using the handler,
// and commits offsets after successful processing. It stops gracefully on context cancellation.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.topic).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.client.Fetch(ctx)
			return fetchErr
		}, c.strategy)

		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			// Log error and retry after a short backoff.
			zlog.Logger.Err(err).Msg("failed to fetch message")
			select {
			case <-ctx.Done():
			case <-time.After(fetchBackoff):
			}
			continue
		}

		// Committing a later offset would skip this one for good, so the
		// consumer stays on the message until it is handled or shut down.
		if !c.handle(ctx, msg) {
			zlog.Logger.Info().
				Int64("offset", msg.Offset).
				Msg("shutdown before message was handled, leaving it uncommitted")
			return
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Info().
			Int64("offset", msg.Offset).
			Str("key", string(msg.Key)).
			Msg("message handled successfully")
	}
}

// handle runs the handler with retries until it succeeds. It returns false
// when ctx is cancelled first.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := retry.Do(func() error {
			return c.uploadedHandler.Handle(ctx, msg)
		}, c.strategy)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		zlog.Logger.Err(err).
			Int64("offset", msg.Offset).
			Str("message", string(msg.Value)).
			Msg("failed to process photo, holding offset")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.handleBackoff):
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.client.Close()
}
