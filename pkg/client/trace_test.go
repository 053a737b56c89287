package client_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/lodego/webstuff/pkg/client"
)

// eventLog collects trace events of one client.
type eventLog struct {
	lock  sync.Mutex
	lines []string
}

func (l *eventLog) add(format string, a ...any) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, a...))
}

func (l *eventLog) String() string {
	return strings.Join(l.lines, "\n") + "\n"
}

// hooks reports each stage of a request, prefixed by the name.
func (l *eventLog) hooks(name string) TraceFactory {
	dump := spew.NewDefaultConfig()
	dump.DisablePointerAddresses = true
	dump.DisableCapacities = true
	dump.SortKeys = true
	return func() *Trace {
		return &Trace{
			GotRequest: func(ctx context.Context, request HTTPRequest) context.Context {
				l.add("%s got       %s %s", name, request.Method(), request.URL())
				return ctx
			},
			HTTPRequestStart: func(request *http.Request) {
				l.add("%s start     %s %s", name, request.Method, request.URL)
			},
			HTTPRequestDone: func(response *http.Response, err error) {
				l.add("%s done      %d err=%v", name, response.StatusCode, err)
			},
			RequestProcessed: func(result any, err error) {
				l.add("%s processed %s err=%v", name, strings.TrimSpace(dump.Sdump(result)), err)
			},
		}
	}
}

func redirectResponder(location string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", location)
		return &http.Response{StatusCode: http.StatusFound, Header: header, Body: http.NoBody}, nil
	}
}

func TestTrace_Redirects(t *testing.T) {
	t.Parallel()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/redirect/2", redirectResponder("/relative-redirect/1"))
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/relative-redirect/1", redirectResponder("/get"))
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/get", httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"url":  "https://httpbin.org/get",
		"args": map[string]any{},
	}))

	events := &eventLog{}
	c := New().WithTransport(transport).AndTrace(events.hooks("t"))

	_, result, err := NewHTTPRequest().WithGet("https://httpbin.org/redirect/2").Send(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "https://httpbin.org/get", "args": map[string]any{}}, result)

	// Each redirect is a separate round trip, the request is processed once
	assert.Equal(t, `t got       GET https://httpbin.org/redirect/2
t start     GET https://httpbin.org/redirect/2
t done      302 err=<nil>
t start     GET https://httpbin.org/relative-redirect/1
t done      302 err=<nil>
t start     GET https://httpbin.org/get
t done      200 err=<nil>
t processed (map[string]interface {}) (len=2) {
 (string) (len=4) "args": (map[string]interface {}) {
 },
 (string) (len=3) "url": (string) (len=23) "https://httpbin.org/get"
} err=<nil>
`, events.String())
}

func TestTrace_OrderOfHooks(t *testing.T) {
	t.Parallel()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/status/418", httpmock.NewStringResponder(http.StatusTeapot, "I'm a teapot!"))

	// A nil trace is skipped
	events := &eventLog{}
	c := New().
		WithTransport(transport).
		AndTrace(events.hooks("first")).
		AndTrace(func() *Trace { return nil }).
		AndTrace(events.hooks("second"))

	var body string
	res, _, err := NewHTTPRequest().WithGet("https://httpbin.org/status/418").WithResult(&body).Send(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, res.StatusCode())
	assert.Equal(t, "I'm a teapot!", body)

	assert.Equal(t, `first got       GET https://httpbin.org/status/418
second got       GET https://httpbin.org/status/418
first start     GET https://httpbin.org/status/418
second start     GET https://httpbin.org/status/418
first done      418 err=<nil>
second done      418 err=<nil>
first processed (*string)((len=13) "I'm a teapot!") err=<nil>
second processed (*string)((len=13) "I'm a teapot!") err=<nil>
`, events.String())
}

func TestTrace_GotRequestContext(t *testing.T) {
	t.Parallel()

	type ctxKey string

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/headers", func(request *http.Request) (*http.Response, error) {
		assert.Equal(t, "req-1", request.Context().Value(ctxKey("requestID")))
		return httpmock.NewStringResponse(http.StatusOK, "{}"), nil
	})

	c := New().
		WithTransport(transport).
		AndTrace(func() *Trace {
			return &Trace{
				GotRequest: func(ctx context.Context, request HTTPRequest) context.Context {
					return context.WithValue(ctx, ctxKey("requestID"), "req-1")
				},
			}
		})

	require.NoError(t, NewHTTPRequest().WithGet("https://httpbin.org/headers").SendOrErr(context.Background(), c))
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://httpbin.org/headers"])
}

func TestDumpTracer(t *testing.T) {
	t.Parallel()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "https://httpbin.org/anything", func(*http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json")
		return &http.Response{StatusCode: http.StatusCreated, Header: header, Body: io.NopCloser(strings.NewReader(`{"created":true}`))}, nil
	})

	var out strings.Builder
	c := New().WithTransport(transport).AndTrace(DumpTracer(&out))

	_, _, err := NewHTTPRequest().
		WithPost("https://httpbin.org/anything").
		AndQueryParam("page", "2").
		WithJSONBody(map[string]any{"name": "webstuff"}).
		Send(context.Background(), c)
	require.NoError(t, err)

	dump := out.String()
	assert.Contains(t, dump, ">>>>>> HTTP DUMP\nPOST /anything?page=2 HTTP/1.1\r\nHost: httpbin.org\r\nUser-Agent: webstuff\r\n")
	assert.Contains(t, dump, `{"name":"webstuff"}`)
	assert.Contains(t, dump, "201 Created")
	assert.Contains(t, dump, "------\n{\"created\":true}\n<<<<<< HTTP DUMP END\n")
	assert.Contains(t, dump, ">>>>>> HTTP REQUEST PROCESSED |  POST /anything?page=2 201 | ERROR: <nil> | RESPONSE ERROR: <nil> | HEADERS AT: ")
}

func TestLogTracer(t *testing.T) {
	t.Parallel()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/status/503", httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/bytes/4", httpmock.NewBytesResponder(http.StatusOK, []byte{1, 2, 3, 4}))

	var out strings.Builder
	c := New().WithTransport(transport).AndTrace(LogTracer(&out))
	ctx := context.Background()

	res, _, err := NewHTTPRequest().WithGet("https://httpbin.org/status/503").Send(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.IsError())

	_, result, err := NewHTTPRequest().WithGet("https://httpbin.org/bytes/4").Send(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, result)

	// Invalid URL fails before the round trip
	_, _, err = NewHTTPRequest().WithGet("https://httpbin.org:port/get").Send(ctx, c)
	require.Error(t, err)

	wildcards.Assert(t, `
HTTP_REQUEST[0001] START GET "https://httpbin.org/status/503"
HTTP_REQUEST[0001] DONE  GET "https://httpbin.org/status/503" | 503 | %s
HTTP_REQUEST[0001] BODY  GET "https://httpbin.org/status/503" | %s
HTTP_REQUEST[0002] START GET "https://httpbin.org/bytes/4"
HTTP_REQUEST[0002] DONE  GET "https://httpbin.org/bytes/4" | 200 | %s
HTTP_REQUEST[0002] BODY  GET "https://httpbin.org/bytes/4" | %s
HTTP_REQUEST[0003] FAIL  | error=request GET "https://httpbin.org:port/get" failed: invalid url: %s
`, "\n"+out.String())
}
