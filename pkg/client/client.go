// Package client provides support for sending HTTP requests and decoding their responses.
//
// Use HTTPRequest interface to define immutable HTTP requests, see NewHTTPRequest function.
// Requests are sent using the Sender interface.
//
// Client is a default implementation of the Sender interface.
// Client is based on the standard net/http package and contains tracing support.
// RestySender is an alternative implementation based on the go-resty library.
//
// Both implementations report failures as *RequestError.
// HTTP error statuses are not errors, the body is decoded and returned with the raw response.
//
// RunGroup is a helper for concurrent requests.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultUserAgent      = "webstuff"
	DefaultAcceptEncoding = "gzip, br"
)

// Client is a default and configurable implementation of the Sender interface by Go native http.Client.
//
// By default, each request is sent through its own transport,
// idle connections of the transport are closed when the request is done.
// Use WithTransport to share one transport between requests.
type Client struct {
	transport        http.RoundTripper
	transportFactory func() http.RoundTripper
	baseURL          *url.URL
	header           http.Header
	timeout          time.Duration
	traceFactories   []TraceFactory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transportFactory: DefaultTransport, header: make(http.Header)}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.header.Set("Accept-Encoding", DefaultAcceptEncoding)
	return c
}

// WithBaseURL returns a clone of the Client with base url set.
func (c Client) WithBaseURL(baseURLStr string) Client {
	baseURL, err := url.Parse(baseURLStr)
	if err != nil {
		panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
	}
	c.baseURL = baseURL
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	return c.WithHeader("User-Agent", v)
}

// WithHeader returns a clone of the Client with common header set.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a shared HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	c.transportFactory = nil
	return c
}

// WithTransportFactory returns a clone of the Client which creates a new transport for each request.
func (c Client) WithTransportFactory(fn func() http.RoundTripper) Client {
	if fn == nil {
		panic(fmt.Errorf("transport factory cannot be nil"))
	}
	c.transport = nil
	c.transportFactory = fn
	return c
}

// WithTimeout returns a clone of the Client with the default timeout of a request set.
// Zero means no timeout.
func (c Client) WithTimeout(timeout time.Duration) Client {
	c.timeout = timeout
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
// The hooks are invoked in the order they were added.
func (c Client) AndTrace(fn TraceFactory) Client {
	c.traceFactories = append(c.traceFactories[:len(c.traceFactories):len(c.traceFactories)], fn)
	return c
}

// Send method sends HTTP request and returns HTTP response, it implements the Sender interface.
func (c Client) Send(ctx context.Context, reqDef HTTPRequest) (res *http.Response, result any, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil && c.transportFactory == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	method := reqDef.Method()
	reqURLStr := reqDef.URL()

	// Init trace
	trace := newTraces(c.traceFactories)
	ctx = trace.gotRequest(ctx, reqDef)
	defer func() {
		trace.requestProcessed(result, err)
	}()

	// Timeout
	startedAt := time.Now()
	timeout := reqDef.Timeout()
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Convert to absolute url
	reqURL, err := c.requestURL(reqURLStr, reqDef.QueryParams())
	if err != nil {
		return nil, nil, transportError(method, reqURLStr, err)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, nil, transportError(method, reqURL.String(), err)
	}

	// Global headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	// Request headers
	for k, values := range reqDef.RequestHeader() {
		req.Header.Del(k) // clear global values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Body
	if reqDef.RequestBody() != nil {
		// GetBody factory is used for requests when a redirect requires reading the body more than once.
		body, err := requestBody(reqDef.RequestBody())
		if err != nil {
			return nil, nil, transportError(method, req.URL.String(), err)
		}
		req.GetBody = body
		req.Body, err = req.GetBody()
		if err != nil {
			return nil, nil, transportError(method, req.URL.String(), err)
		}
	}

	// Setup native client, the transport lives for the request or it is shared
	transport, closeTransport := c.roundTripper()
	defer closeTransport()
	nativeClient := http.Client{
		Transport: roundTripper{trace: trace, wrapped: transport}, // wrapped transport for trace
	}

	// Send request
	res, err = nativeClient.Do(req)
	if err != nil {
		return nil, nil, handleSendError(ctx, startedAt, method, req.URL.String(), err)
	}
	defer res.Body.Close()

	// Process body
	result, readErr, decodeErr := readResult(res, reqDef)
	switch {
	case readErr != nil:
		return res, nil, handleSendError(ctx, startedAt, method, req.URL.String(), readErr)
	case decodeErr != nil:
		return res, nil, decodeError(method, req.URL.String(), decodeErr)
	}
	return res, result, nil
}

func (c Client) requestURL(reqURLStr string, query url.Values) (*url.URL, error) {
	reqURL, err := resolveURL(c.baseURL, reqURLStr)
	if err != nil {
		return nil, err
	}
	return appendQuery(*reqURL, query), nil
}

// resolveURL parses the ref and resolves it against the base, if any.
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	var out *url.URL
	var err error
	if base == nil {
		out, err = url.Parse(ref)
	} else {
		out, err = base.Parse(ref)
	}
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	return out, nil
}

// appendQuery keeps query from the URL as it is and appends the encoded query parameters.
func appendQuery(u url.URL, query url.Values) *url.URL {
	if len(query) > 0 {
		if u.RawQuery == "" {
			u.RawQuery = query.Encode()
		} else {
			u.RawQuery += "&" + query.Encode()
		}
	}
	return &u
}

func (c Client) roundTripper() (http.RoundTripper, func()) {
	if c.transport != nil {
		return c.transport, func() {}
	}
	transport := c.transportFactory()
	return transport, func() {
		if v, ok := transport.(interface{ CloseIdleConnections() }); ok {
			v.CloseIdleConnections()
		}
	}
}

// requestBody returns a factory of the body reader.
// A string, []byte and io.Reader are sent as they are, any other value is encoded to JSON.
func requestBody(body any) (func() (io.ReadCloser, error), error) {
	switch v := body.(type) {
	case string:
		return func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(v)), nil }, nil
	case []byte:
		return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(v)), nil }, nil
	case io.ReadSeeker:
		return func() (io.ReadCloser, error) {
			if _, err := v.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("cannot rewind request body: %w", err)
			}
			if c, ok := v.(io.ReadCloser); ok {
				return c, nil
			}
			return io.NopCloser(v), nil
		}, nil
	case io.Reader:
		// A stream can be read only once
		used := false
		return func() (io.ReadCloser, error) {
			if used {
				return nil, fmt.Errorf("request body stream has already been read")
			}
			used = true
			return io.NopCloser(v), nil
		}, nil
	default:
		c, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf(`cannot encode JSON body: %w`, err)
		}
		return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(c)), nil }, nil
	}
}

// handleSendError converts err to the *RequestError, a timeout or a cancellation is reported with the elapsed time.
func handleSendError(ctx context.Context, startedAt time.Time, method, urlStr string, err error) *RequestError {
	var netErr net.Error
	if deadline, ok := ctx.Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timeout after %s", deadline.Sub(startedAt))
	} else if errors.Is(err, context.Canceled) {
		err = fmt.Errorf("canceled after %s", time.Since(startedAt))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = fmt.Errorf("timeout after %s", time.Since(startedAt))
	} else {
		// Url error, the method and the URL are part of the RequestError message
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
	}
	return transportError(method, urlStr, err)
}

// roundTripper wraps a http.RoundTripper and adds trace functionality.
type roundTripper struct {
	trace   traces
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.trace.httpRequestStart(req)
	res, err := rt.wrapped.RoundTrip(req)
	rt.trace.httpRequestDone(res, err)
	return res, err
}
