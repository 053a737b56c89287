package otel

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	otelTrace "go.opentelemetry.io/otel/trace"
)

func TestNewConfig_SensitiveHeaders(t *testing.T) {
	t.Parallel()
	cfg := newConfig([]Option{WithRedactedHeaders("X-Api-Key", "x-session")})

	for _, name := range []string{"authorization", "Cookie", "SET-COOKIE", "X-API-KEY", "X-Session"} {
		assert.True(t, cfg.sensitive.has(name), name)
	}
	for _, name := range []string{"Accept", "Content-Type", "X-Request-Id"} {
		assert.False(t, cfg.sensitive.has(name), name)
	}
}

func TestConfig_Inject(t *testing.T) {
	t.Parallel()
	spanCtx := otelTrace.NewSpanContext(otelTrace.SpanContextConfig{
		TraceID:    otelTrace.TraceID{0x01},
		SpanID:     otelTrace.SpanID{0x02},
		TraceFlags: otelTrace.FlagsSampled,
	})
	ctx := otelTrace.ContextWithSpanContext(context.Background(), spanCtx)

	// No propagator, no header
	header := http.Header{}
	newConfig(nil).inject(ctx, header)
	assert.Empty(t, header)

	header = http.Header{}
	newConfig([]Option{WithPropagators(propagation.TraceContext{})}).inject(ctx, header)
	assert.Equal(t, "00-01000000000000000000000000000000-0200000000000000-01", header.Get("Traceparent"))
}
