package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const dumpTraceMaxLength = 2000

// Trace is a set of hooks to run at various stages of an outgoing HTTPRequest.
type Trace struct {
	httptrace.ClientTrace // native, low level trace
	// GotRequest is called when Client.Send method is called.
	// The returned context is used for the rest of the request, nil means the context is not modified.
	GotRequest func(ctx context.Context, request HTTPRequest) context.Context
	// RequestProcessed is called when Client.Send method is done, the response body is read.
	RequestProcessed func(result any, err error)
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the request completes. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
}

// TraceFactory creates Trace hooks for a request.
// It may return nil, if the request should not be traced.
type TraceFactory func() *Trace

// traces are hooks of one request, in the order the factories were registered.
type traces []*Trace

func newTraces(factories []TraceFactory) traces {
	var out traces
	for _, fn := range factories {
		if t := fn(); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (ts traces) gotRequest(ctx context.Context, request HTTPRequest) context.Context {
	for _, t := range ts {
		ctx = httptrace.WithClientTrace(ctx, &t.ClientTrace)
		if t.GotRequest != nil {
			if v := t.GotRequest(ctx, request); v != nil {
				ctx = v
			}
		}
	}
	return ctx
}

func (ts traces) httpRequestStart(request *http.Request) {
	for _, t := range ts {
		if t.HTTPRequestStart != nil {
			t.HTTPRequestStart(request)
		}
	}
}

func (ts traces) httpRequestDone(response *http.Response, err error) {
	for _, t := range ts {
		if t.HTTPRequestDone != nil {
			t.HTTPRequestDone(response, err)
		}
	}
}

func (ts traces) requestProcessed(result any, err error) {
	for _, t := range ts {
		if t.RequestProcessed != nil {
			t.RequestProcessed(result, err)
		}
	}
}

type logTrace struct {
	Trace
	wr   io.Writer
	lock *sync.Mutex
}

// LogTracer writes one line per stage of each request to the writer.
func LogTracer(wr io.Writer) TraceFactory {
	var idGenerator uint64
	lock := &sync.Mutex{}
	return func() *Trace {
		requestID := atomic.AddUint64(&idGenerator, 1)

		var request *http.Request
		var connStartTime time.Time
		var startTime time.Time
		var doneTime time.Time
		var statusCode int

		t := &logTrace{wr: wr, lock: lock}
		t.ConnectStart = func(network, addr string) {
			connStartTime = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			if request == nil {
				return
			}
			var infoStr string
			if info.Reused {
				if info.WasIdle {
					infoStr = fmt.Sprintf("reused conn (was idle=%s)", info.IdleTime)
				} else {
					infoStr = "reused conn"
				}
			} else {
				infoStr = fmt.Sprintf("new conn | %s", time.Since(connStartTime))
			}
			t.log(requestID, fmt.Sprintf(`CONN  %s "%s" | %s`, request.Method, request.URL.String(), infoStr))
		}
		t.HTTPRequestStart = func(r *http.Request) {
			request = r
			startTime = time.Now()
			t.log(requestID, fmt.Sprintf(`START %s "%s"`, request.Method, request.URL.String()))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			doneTime = time.Now()
			var errorStr string
			if err == nil {
				statusCode = r.StatusCode
			} else {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(requestID, fmt.Sprintf(`DONE  %s "%s" | %d | %s%s`, request.Method, request.URL.String(), statusCode, doneTime.Sub(startTime).String(), errorStr))
		}
		t.RequestProcessed = func(result any, err error) {
			if request == nil {
				// The request has not been sent, for example, the URL is invalid
				t.log(requestID, fmt.Sprintf(`FAIL  | error=%s`, err))
				return
			}
			var errorStr string
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(requestID, fmt.Sprintf(`BODY  %s "%s" | %s%s`, request.Method, request.URL.String(), time.Since(doneTime).String(), errorStr))
		}
		return &t.Trace
	}
}

func (t *logTrace) log(requestID uint64, a ...any) {
	t.lock.Lock()
	defer t.lock.Unlock()
	a = append([]any{fmt.Sprintf("HTTP_REQUEST[%04d]", requestID)}, a...)
	fmt.Fprintln(t.wr, a...)
}

type dumpTrace struct {
	Trace
	wr   io.Writer
	lock *sync.Mutex
}

// DumpTracer dumps HTTP request and response to a writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) TraceFactory {
	lock := &sync.Mutex{}
	return func() *Trace {
		var requestMethod, requestURI string
		var responseStatusCode int
		var requestDump []byte
		var responseErr error
		var startTime, headersTime time.Time

		t := &dumpTrace{wr: wr, lock: lock}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			requestMethod = r.Method
			requestURI = r.URL.RequestURI()
			requestDump, _ = httputil.DumpRequestOut(r, true)
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			// Response can be nil, for example, if some network error occurred
			if r != nil {
				responseStatusCode = r.StatusCode
				headersTime = time.Now()
			}
			responseErr = err

			var out strings.Builder
			line := func(a ...any) { fmt.Fprintln(&out, a...) }

			// Dump request
			line()
			line(">>>>>> HTTP DUMP")
			line(truncateDump(string(requestDump)))

			// Dump response
			line("------")
			if err != nil {
				line("ERROR: ", err)
			} else {
				// Dump response headers
				if v, err := httputil.DumpResponse(r, false); err == nil {
					line(strings.TrimSpace(string(v)))
				} else {
					line("cannot dump response headers: ", err)
				}
				// Dump response body
				if r.Body != nil && r.Body != http.NoBody {
					// Decode body and copy raw body to rawBody buffer
					var rawBody bytes.Buffer
					var decodedBody strings.Builder
					if bodyReader, err := decodeBody(io.NopCloser(io.TeeReader(r.Body, &rawBody)), r.Header.Get("Content-Encoding")); err != nil {
						line("cannot read response body: ", err)
					} else if _, err := io.Copy(&decodedBody, bodyReader); err != nil {
						line("cannot read response body: ", err)
					}
					// Set buffered raw body back to the response
					r.Body = io.NopCloser(bytes.NewReader(rawBody.Bytes()))
					// Dump decoded response
					line("------")
					line(truncateDump(decodedBody.String()))
				}
			}
			line("<<<<<< HTTP DUMP END")
			t.write(out.String())
		}
		t.RequestProcessed = func(result any, err error) {
			t.write(fmt.Sprintln() + fmt.Sprintln(">>>>>> HTTP REQUEST PROCESSED", "| ", requestMethod, requestURI, responseStatusCode, "| ERROR:", err, "| RESPONSE ERROR:", responseErr, "| HEADERS AT:", headersTime.Sub(startTime), "| DONE AT:", time.Since(startTime)))
		}
		return &t.Trace
	}
}

func truncateDump(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > dumpTraceMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		return body[:dumpTraceMaxLength] + "\n... (set env HTTP_DUMP_TRACE_FULL=true to see full output)"
	}
	return body
}

func (t *dumpTrace) write(s string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	_, _ = io.WriteString(t.wr, s)
}
