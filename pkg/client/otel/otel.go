// Package otel provides OpenTelemetry tracing and metrics for requests sent by the client.Client.
//
// Spans:
//   - "webstuff.http.request" wraps one logical request, including redirects and body decoding.
//   - "http.request" is created for each round trip, so each redirect has its own span.
//   - Low-level spans "http.dns", "http.getconn", "http.connect", "http.tls", "http.headers" and "http.send"
//     are created by httptrace hooks, if the transport reports them.
//
// Metrics names start with "webstuff.http.request." for logical requests
// and with "webstuff.http.roundtrip." for round trips, see the meters struct.
package otel

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lodego/webstuff/pkg/client"
)

const (
	traceAppName     = "github.com/lodego/webstuff"
	attrResourceName = attribute.Key("resource.name")
	// Round trip tracing, for each redirect.
	httpSpanPrefix           = "http."
	httpRequestSpanName      = httpSpanPrefix + "request"
	httpDNSSpanName          = httpSpanPrefix + "dns"
	httpGetConnSpanName      = httpSpanPrefix + "getconn"
	httpConnectSpanName      = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName = httpSpanPrefix + "tls"
	httpHeadersSpanName      = httpSpanPrefix + "headers"
	httpSendSpanName         = httpSpanPrefix + "send"
	attrDNSAddresses         = attribute.Key("http.dns.addrs")
	attrRemoteAddr           = attribute.Key("http.remote")
	attrLocalAddr            = attribute.Key("http.local")
	attrConnectionReused     = attribute.Key("http.conn.reused")
	attrConnectionWasIdle    = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime   = attribute.Key("http.conn.idletime")
	attrConnectionNetwork    = attribute.Key("http.conn.network")
	// Logical request tracing.
	clientRequestSpanName = "webstuff.http.request"
	attrResultType        = attribute.Key("result.type")
)

// NewTrace creates client.Trace hooks which report spans and metrics to the providers.
// Nil provider means the telemetry of the kind is not reported.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) client.TraceFactory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func() *client.Trace {
		t := &client.Trace{}
		var attrs *attributes
		var rootCtx context.Context
		var rootSpan otelTrace.Span
		var startTime time.Time

		// Root span and metrics, it may contain multiple HTTP requests (redirects).
		t.GotRequest = func(ctx context.Context, reqDef client.HTTPRequest) context.Context {
			attrs = newAttributes(cfg, reqDef)
			startTime = time.Now()

			// Metrics
			meters.client.inFlight.Add(ctx, 1, otelMetric.WithAttributes(attrs.definition...))

			// Tracing
			rootCtx, rootSpan = tracer.Start(
				ctx,
				clientRequestSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				otelTrace.WithAttributes(attrResourceName.String(attrs.definitionURL.Path)),
				otelTrace.WithAttributes(attrs.definition...),
				otelTrace.WithAttributes(attrs.definitionExtra...),
			)
			return rootCtx
		}
		t.RequestProcessed = func(result any, err error) {
			if rootSpan == nil {
				return
			}
			elapsedTime := float64(time.Since(startTime)) / float64(time.Millisecond)

			// Metrics
			meterAttrs := append(append([]attribute.KeyValue{}, attrs.definition...), attrs.httpResponse...)
			meters.client.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.definition...)) // same attributes/dimensions as above (+1)!
			meters.client.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))

			// Tracing, add attributes from the last response
			rootSpan.SetAttributes(attrs.httpResponse...)
			rootSpan.SetAttributes(attrs.httpResponseExtra...)
			rootSpan.SetAttributes(attrResultType.String(resultType(result)))
			if err == nil {
				rootSpan.End()
			} else {
				rootSpan.RecordError(err)
				rootSpan.SetStatus(codes.Error, err.Error())
				rootSpan.End()
			}
			rootSpan = nil
		}

		// Round trips
		var httpCtx context.Context
		var httpRequestSpan otelTrace.Span
		var httpRequestStart time.Time
		t.HTTPRequestStart = func(req *http.Request) {
			httpCtx, httpRequestSpan = tracer.Start(
				rootCtx,
				httpRequestSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
			)

			// Inject trace headers
			cfg.inject(httpCtx, req.Header)

			httpRequestStart = time.Now()
			attrs.SetFromRequest(req)
			meters.http.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.httpRequest...))
			httpRequestSpan.SetAttributes(attrResourceName.String(req.URL.Path))
			httpRequestSpan.SetAttributes(attrs.httpRequest...)
			httpRequestSpan.SetAttributes(attrs.httpRequestExtra...)
		}
		t.HTTPRequestDone = func(res *http.Response, err error) {
			elapsedTime := float64(time.Since(httpRequestStart)) / float64(time.Millisecond)
			attrs.SetFromResponse(res, err)

			// Metrics
			meters.http.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.httpRequest...)) // same attributes/dimensions as in HTTPRequestStart!
			meters.http.duration.Record(
				rootCtx,
				elapsedTime,
				otelMetric.WithAttributes(attrs.httpRequest...),
				otelMetric.WithAttributes(attrs.httpResponse...),
			)

			// Tracing
			if httpRequestSpan != nil {
				httpRequestSpan.SetAttributes(attrs.httpResponse...)
				httpRequestSpan.SetAttributes(attrs.httpResponseExtra...)
				if err != nil {
					httpRequestSpan.RecordError(err)
					httpRequestSpan.SetStatus(codes.Error, err.Error())
				}
				httpRequestSpan.End()
				httpRequestSpan = nil
			}
		}

		// Register low-level tracing.
		// httptrace: DNS
		{
			var dnsSpan otelTrace.Span
			t.DNSStart = func(info httptrace.DNSStartInfo) {
				_, dnsSpan = tracer.Start(
					spanParent(httpCtx, rootCtx),
					httpDNSSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.NetHostName(info.Host)),
				)
			}
			t.DNSDone = func(info httptrace.DNSDoneInfo) {
				if dnsSpan != nil {
					var addrs []string
					for _, netAddr := range info.Addrs {
						addrs = append(addrs, netAddr.String())
					}
					dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
					endSpan(dnsSpan, info.Err)
					dnsSpan = nil
				}
			}
		}
		// httptrace: Get connection
		{
			var getConnSpan otelTrace.Span
			t.GetConn = func(host string) {
				_, getConnSpan = tracer.Start(
					spanParent(httpCtx, rootCtx),
					httpGetConnSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.NetHostName(host)),
				)
			}
			t.GotConn = func(info httptrace.GotConnInfo) {
				if getConnSpan != nil {
					getConnSpan.SetAttributes(
						attrConnectionReused.Bool(info.Reused),
						attrConnectionWasIdle.Bool(info.WasIdle),
					)
					if info.Conn != nil {
						getConnSpan.SetAttributes(
							attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
							attrLocalAddr.String(info.Conn.LocalAddr().String()),
						)
					}
					if info.WasIdle {
						getConnSpan.SetAttributes(attrConnectionIdleTime.String(info.IdleTime.String()))
					}
					getConnSpan.End()
					getConnSpan = nil
				}
			}
		}
		// httptrace: Connect
		{
			var connectSpan otelTrace.Span
			t.ConnectStart = func(network, addr string) {
				_, connectSpan = tracer.Start(
					spanParent(httpCtx, rootCtx),
					httpConnectSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrRemoteAddr.String(addr), attrConnectionNetwork.String(network)),
				)
			}
			t.ConnectDone = func(network, addr string, err error) {
				if connectSpan != nil {
					endSpan(connectSpan, err)
					connectSpan = nil
				}
			}
		}
		// httptrace: TLS handshake
		// Note: It is not reported if the http2.Transport is used directly, without upgrade from http.Transport.
		{
			var tlsSpan otelTrace.Span
			t.TLSHandshakeStart = func() {
				_, tlsSpan = tracer.Start(
					spanParent(httpCtx, rootCtx),
					httpTLSHandshakeSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			t.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
				if tlsSpan != nil {
					endSpan(tlsSpan, err)
					tlsSpan = nil
				}
			}
		}
		// httptrace: headers, send
		{
			var headersSpan, sendSpan otelTrace.Span
			t.WroteHeaderField = func(_ string, _ []string) {
				// Start headers span at first header
				if headersSpan == nil {
					_, headersSpan = tracer.Start(
						spanParent(httpCtx, rootCtx),
						httpHeadersSpanName,
						otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					)
				}
			}
			t.WroteHeaders = func() {
				if headersSpan != nil {
					headersSpan.End()
					headersSpan = nil
				}
				_, sendSpan = tracer.Start(
					spanParent(httpCtx, rootCtx),
					httpSendSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			t.WroteRequest = func(info httptrace.WroteRequestInfo) {
				if sendSpan != nil {
					endSpan(sendSpan, info.Err)
					sendSpan = nil
				}
			}
		}

		return t
	}
}

func endSpan(span otelTrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// spanParent returns the round trip context, if the round trip has started.
func spanParent(httpCtx, rootCtx context.Context) context.Context {
	if httpCtx != nil {
		return httpCtx
	}
	if rootCtx != nil {
		return rootCtx
	}
	return context.Background()
}

func resultType(result any) string {
	switch result.(type) {
	case nil:
		return "nil"
	case string, *string:
		return "string"
	case []byte, *[]byte:
		return "bytes"
	default:
		return "json"
	}
}
