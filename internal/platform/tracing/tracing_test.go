package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxregistry/internal/platform/config"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("none is a noop", func(t *testing.T) {
		p, err := NewProvider(ctx, config.TracingConfig{Exporter: "none"})
		require.NoError(t, err)
		_, span := p.Tracer().Start(ctx, "op")
		assert.False(t, span.SpanContext().IsValid())
		span.End()
		assert.NoError(t, p.Shutdown(ctx))
	})

	t.Run("stdout records spans", func(t *testing.T) {
		p, err := NewProvider(ctx, config.TracingConfig{Exporter: "stdout", SampleRate: 1})
		require.NoError(t, err)
		_, span := p.Tracer().Start(ctx, "op")
		assert.True(t, span.SpanContext().IsValid())
		span.End()
		assert.NoError(t, p.Shutdown(ctx))
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := NewProvider(ctx, config.TracingConfig{Exporter: "zipkin"})
		assert.ErrorContains(t, err, "unsupported trace exporter")
	})
}
