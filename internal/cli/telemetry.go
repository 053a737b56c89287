package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkMetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/lodego/webstuff/pkg/client"
	clientOtel "github.com/lodego/webstuff/pkg/client/otel"
)

const serviceName = "webstuff"

// telemetry exports spans and metrics of sent requests as JSON to a writer.
type telemetry struct {
	tracerProvider *sdkTrace.TracerProvider
	meterProvider  *sdkMetric.MeterProvider
}

func newTelemetry(w io.Writer, version string) (*telemetry, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version),
	)

	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("cannot create span exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("cannot create metric exporter: %w", err)
	}

	return &telemetry{
		tracerProvider: sdkTrace.NewTracerProvider(
			sdkTrace.WithSyncer(spanExporter),
			sdkTrace.WithResource(res),
		),
		// Metrics are exported on shutdown, the CLI process is short-lived
		meterProvider: sdkMetric.NewMeterProvider(
			sdkMetric.WithReader(sdkMetric.NewPeriodicReader(metricExporter)),
			sdkMetric.WithResource(res),
		),
	}, nil
}

// trace returns hooks reporting requests to the providers.
func (t *telemetry) trace() client.TraceFactory {
	return clientOtel.NewTrace(t.tracerProvider, t.meterProvider, clientOtel.WithPropagators(propagation.TraceContext{}))
}

// shutdown flushes pending spans and metrics.
func (t *telemetry) shutdown(ctx context.Context) error {
	var errs error
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("cannot shutdown tracer provider: %w", err))
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("cannot shutdown meter provider: %w", err))
	}
	return errs
}
