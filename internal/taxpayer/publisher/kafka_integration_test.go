//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"taxregistry/internal/platform/config"
	"taxregistry/internal/platform/kafka/producer"
	"taxregistry/internal/taxpayer/models"
	"taxregistry/internal/taxpayer/publisher"
	"taxregistry/pkg/testutil/containers"
)

func TestPublishedEventsReachTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	kafka := containers.GetManager().GetKafka(t)
	topic := "taxpayer-events-publisher"
	require.NoError(t, kafka.CreateTopic(ctx, topic, 1))

	prod, err := producer.New(config.KafkaConfig{Brokers: kafka.Brokers, Acks: "all"}, nil)
	require.NoError(t, err)

	pub := publisher.NewKafka(prod, topic)
	require.NoError(t, pub.Publish(ctx, models.TaxPayerCreated{TID: 41, FirstName: "Ada", LastName: "Lovelace"}))
	// Close flushes the async buffer.
	require.NoError(t, prod.Close())

	record, err := kafka.ConsumeOne(ctx, topic, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "41"
	})
	require.NoError(t, err)

	var event models.TaxPayerCreated
	require.NoError(t, json.Unmarshal(record.Value, &event))
	require.Equal(t, "Ada", event.FirstName)
}
