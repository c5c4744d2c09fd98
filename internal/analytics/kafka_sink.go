package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/kafka"
)

// KafkaSink publishes batches to the analytics topic.
type KafkaSink struct {
	producer *kafka.Producer
}

func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Publish(ctx context.Context, events []Event) error {
	batch := make([]kafka.Event, len(events))
	for i, e := range events {
		key := string(e.Type)
		if e.Query != "" {
			key = e.Query
		}
		batch[i] = kafka.Event{Key: key, Value: e}
	}
	return s.producer.PublishBatch(ctx, batch)
}

// HandleMessage feeds a consumed analytics message into agg. Undecodable
// messages are logged and acknowledged so they do not block the partition.
func HandleMessage(agg *Aggregator) kafka.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[Event](msg.Value)
		if err != nil {
			agg.logger.Warn("dropping undecodable analytics event", "offset", msg.Offset, "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}
