package otel

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// Option customizes the telemetry reported by NewTrace.
type Option func(*config)

type config struct {
	propagator propagation.TextMapPropagator
	sensitive  headerSet
}

// headerSet holds lower-cased header names.
type headerSet map[string]bool

// defaultSensitiveHeaders carry credentials, their values never reach span attributes.
var defaultSensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"WWW-Authenticate",
	"Proxy-Authenticate",
	"Cookie",
	"Set-Cookie",
}

// WithPropagators sets the propagator which writes the trace context to the headers of each sent request.
func WithPropagators(v propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagator = v
	}
}

// WithRedactedHeaders masks the headers values in span attributes, the defaults stay masked.
func WithRedactedHeaders(headers ...string) Option {
	return func(c *config) {
		c.sensitive.add(headers...)
	}
}

func newConfig(opts []Option) config {
	cfg := config{sensitive: headerSet{}}
	cfg.sensitive.add(defaultSensitiveHeaders...)
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// inject writes the trace context from the ctx to the header, if a propagator is set.
func (c config) inject(ctx context.Context, header http.Header) {
	if c.propagator != nil {
		c.propagator.Inject(ctx, propagation.HeaderCarrier(header))
	}
}

func (s headerSet) add(names ...string) {
	for _, name := range names {
		s[strings.ToLower(name)] = true
	}
}

func (s headerSet) has(name string) bool {
	return s[strings.ToLower(name)]
}
