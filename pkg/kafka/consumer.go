package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
)

// Message is the part of a Kafka record handlers care about.
type Message struct {
	Topic  string
	Key    []byte
	Value  []byte
	Offset int64
	Time   time.Time
}

// Handler processes one message. A returned error leaves the offset
// uncommitted.
type Handler func(ctx context.Context, msg Message) error

// Consumer reads one topic as part of the configured consumer group.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	backoff time.Duration
	logger  *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		backoff: time.Second,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run consumes until ctx is cancelled. Fetch errors back off and retry;
// handler errors are logged and the message is not committed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		m := Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Offset: msg.Offset, Time: msg.Time}
		if err := c.handler(ctx, m); err != nil {
			c.logger.Error("handler failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding kafka message: %w", err)
	}
	return out, nil
}

// Check dials the first reachable broker.
func Check(brokers []string) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		var lastErr error
		for _, b := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", b)
			if err == nil {
				conn.Close()
				return health.ComponentHealth{Status: health.StatusUp}
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = errors.New("no brokers configured")
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: lastErr.Error()}
	}
}
