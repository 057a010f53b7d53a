package redis

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxregistry/internal/platform/config"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "://nope"}, nil)
	require.Error(t, err)
}

func TestAddDeltaIgnoresRegressions(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "delta_test_total"})

	addDelta(counter, 5, 0)
	addDelta(counter, 8, 5)
	addDelta(counter, 3, 8)

	assert.InDelta(t, 8, promtest.ToFloat64(counter), 0)
}

func TestRecordPoolStatsOnIdleClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPoolMetrics(reg)
	client := &Client{
		Client:  redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}),
		metrics: metrics,
	}
	t.Cleanup(func() { _ = client.Close() })

	client.RecordPoolStats()
	client.RecordPoolStats()

	assert.InDelta(t, 0, promtest.ToFloat64(metrics.totalConns), 0)
	assert.InDelta(t, 0, promtest.ToFloat64(metrics.hits), 0)
}
