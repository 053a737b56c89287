package otel

import otelMetric "go.opentelemetry.io/otel/metric"

const (
	clientMeterPrefix = "webstuff.http.request."
	httpMeterPrefix   = "webstuff.http.roundtrip."
)

type meters struct {
	client requestMeters
	http   requestMeters
}

type requestMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

func newMeters(meter otelMetric.Meter) *meters {
	return &meters{
		client: requestMeters{
			inFlight: upDownCounter(meter, clientMeterPrefix+"in_flight", "HTTP client: in flight requests."),
			duration: histogram(meter, clientMeterPrefix+"duration", "HTTP client: requests duration, including redirects and body decoding.", "ms"),
		},
		http: requestMeters{
			inFlight: upDownCounter(meter, httpMeterPrefix+"in_flight", "HTTP round trip: in flight round trips."),
			duration: histogram(meter, httpMeterPrefix+"duration", "HTTP round trip: response headers received duration.", "ms"),
		},
	}
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func histogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
