package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/lodego/webstuff/pkg/client"
)

const maskedAttrValue = "****"

type attributes struct {
	config config
	// definitionURL is the parsed URL of the request definition, it may be relative
	definitionURL *url.URL
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
}

func newAttributes(cfg config, reqDef client.HTTPRequest) *attributes {
	out := &attributes{config: cfg}

	out.definitionURL, _ = url.Parse(reqDef.URL())
	if out.definitionURL == nil {
		out.definitionURL = &url.URL{}
	}

	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", reqDef.Method()),
		attribute.String("definition.decoding", reqDef.Decoding().String()),
		attribute.String("definition.url.path", out.definitionURL.Path),
		attribute.String("definition.url.host", out.definitionURL.Host),
	}

	// Full URL can be long and it contains query, so it is not a metric dimension
	out.definitionExtra = append(out.definitionExtra, attribute.String("definition.url.full", reqDef.URL()))
	out.definitionExtra = append(out.definitionExtra, headerAttrs("definition.header.", reqDef.RequestHeader(), cfg, false)...)
	var queryAttrs []attribute.KeyValue
	for k, v := range reqDef.QueryParams() {
		queryAttrs = append(queryAttrs, attribute.String("definition.params.query."+k, strings.Join(v, ";")))
	}
	sortAttrs(queryAttrs)
	out.definitionExtra = append(out.definitionExtra, queryAttrs...)

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		semconv.NetPeerNameKey.String(req.URL.Hostname()),
	}
	v.httpRequestExtra = append([]attribute.KeyValue{
		semconv.HTTPURLKey.String(req.URL.Redacted()),
	}, headerAttrs("http.header.", req.Header, v.config, true)...)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		v.httpResponse = []attribute.KeyValue{semconv.HTTPStatusCodeKey.Int(res.StatusCode)}
		v.httpResponseExtra = headerAttrs("http.response.header.", res.Header, v.config, true)
	}

	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponse = append(v.httpResponse,
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	)
}

func headerAttrs(prefix string, header http.Header, cfg config, lowerKey bool) []attribute.KeyValue {
	var out []attribute.KeyValue
	for key, values := range header {
		value := strings.Join(values, ";")
		if cfg.sensitive.has(key) {
			value = maskedAttrValue
		}
		if lowerKey {
			key = strings.ToLower(key)
		}
		out = append(out, attribute.String(prefix+key, value))
	}
	sortAttrs(out)
	return out
}

func sortAttrs(attrs []attribute.KeyValue) {
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
}
