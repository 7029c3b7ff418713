// Package kafka consumes dataset-refresh events.  The CRM backend publishes
// an event whenever customer data changes (CSV import, registration, manual
// edit); each event triggers a map dataset refresh so the service does not
// need to poll.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
)

// RefreshEvent is the payload published on the customer-refresh topic.
type RefreshEvent struct {
	Source string    `json:"source"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// RefreshHandler reacts to a refresh event.  Returning an error logs the
// failure; the message is committed regardless, as refreshes are idempotent
// and a later event will supersede a failed one.
type RefreshHandler func(ctx context.Context, event RefreshEvent) error

// messageReader is the slice of *kafkago.Reader the consumer depends on,
// separated so tests can feed messages without a broker.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads refresh events from Kafka and dispatches them to a handler.
type Consumer struct {
	reader  messageReader
	topic   string
	group   string
	handler RefreshHandler
	logger  logging.Logger
}

// NewConsumer constructs a Consumer.  Returns nil when no brokers are
// configured, which disables event-driven refresh entirely.
func NewConsumer(cfg config.KafkaConfig, handler RefreshHandler, logger logging.Logger) *Consumer {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          cfg.Topic,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			CommitInterval: 0, // synchronous commits
		}),
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		handler: handler,
		logger:  logger.Named("kafka"),
	}
}

// Run consumes events until ctx is canceled.  It always returns the ctx
// error on shutdown; transient fetch errors are logged and retried.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("refresh consumer started",
		logging.String("topic", c.topic),
		logging.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			c.logger.Warn("fetch failed, retrying", logging.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		var event RefreshEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("dropping malformed refresh event",
				logging.Int("offset", int(msg.Offset)),
				logging.Err(err),
			)
		} else if err := c.handler(ctx, event); err != nil {
			c.logger.Error("refresh handler failed",
				logging.String("source", event.Source),
				logging.Err(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("commit failed", logging.Err(err))
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
