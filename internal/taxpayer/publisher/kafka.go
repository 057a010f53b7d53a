// Package publisher delivers taxpayer registry events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"taxregistry/internal/platform/kafka/producer"
	"taxregistry/internal/taxpayer/models"
	"taxregistry/pkg/requestcontext"
)

const (
	headerEventType     = "event_type"
	headerAggregateType = "aggregate_type"
	headerRequestID     = "request_id"
)

type asyncProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// Kafka publishes each event as a JSON record keyed by tid, so all events for
// one taxpayer land on the same partition. Events are enqueued after the
// mutation commits, so concurrent mutations of one tid may be enqueued in
// either order.
type Kafka struct {
	producer asyncProducer
	topic    string
}

func NewKafka(p asyncProducer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	headers := map[string]string{
		headerEventType:     event.EventType(),
		headerAggregateType: "taxpayer",
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		headers[headerRequestID] = requestID
	}

	return k.producer.ProduceAsync(&producer.Message{
		Topic:   k.topic,
		Key:     []byte(event.AggregateID().String()),
		Value:   payload,
		Headers: headers,
	})
}
