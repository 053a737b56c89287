package client

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"time"
)

// Sendable is a request that can be sent by a Sender, for example HTTPRequest.
type Sendable interface {
	SendOrErr(ctx context.Context, sender Sender) error
}

// Sender represents an HTTP client, the Client is a default implementation using the standard net/http package.
type Sender interface {
	// Send method sends defined request and returns response.
	// The result is the HTTPRequest.ResultDef(), if it is defined,
	// otherwise it is a value decoded according to the HTTPRequest.Decoding().
	// Returned error is a *RequestError.
	Send(ctx context.Context, request HTTPRequest) (rawResponse *http.Response, result any, err error)
}

type httpRequestReadOnly interface {
	// Method returns HTTP method, GET if it is not set.
	Method() string
	// URL method returns HTTP URL, it may be relative to the base URL of the Sender.
	URL() string
	// RequestHeader method returns HTTP request headers.
	RequestHeader() http.Header
	// QueryParams method returns HTTP query parameters, they are appended to the query already present in the URL.
	QueryParams() url.Values
	// RequestBody method returns a definition of HTTP request body.
	// A string, []byte and io.Reader are sent as they are, any other value is encoded to JSON.
	RequestBody() any
	// ResultDef method returns a target value for result mapping.
	ResultDef() any
	// Decoding method returns how the body is decoded if there is no ResultDef.
	Decoding() Decoding
	// Timeout returns the deadline of the request, zero means the Sender default.
	Timeout() time.Duration
}

// HTTPRequest is an immutable HTTP request.
type HTTPRequest interface {
	httpRequestReadOnly
	// WithGet is shortcut for WithMethod(http.MethodGet).WithURL(url)
	WithGet(url string) HTTPRequest
	// WithPost is shortcut for WithMethod(http.MethodPost).WithURL(url)
	WithPost(url string) HTTPRequest
	// WithPut is shortcut for WithMethod(http.MethodPut).WithURL(url)
	WithPut(url string) HTTPRequest
	// WithDelete is shortcut for WithMethod(http.MethodDelete).WithURL(url)
	WithDelete(url string) HTTPRequest
	// WithMethod method sets the HTTP method.
	WithMethod(method string) HTTPRequest
	// WithURL method sets the URL. The URL is validated when the request is sent.
	WithURL(url string) HTTPRequest
	// AndHeader method sets a single header field and its value.
	AndHeader(header string, value string) HTTPRequest
	// WithHeaders method sets multiple header fields, existing fields are kept.
	WithHeaders(headers map[string]string) HTTPRequest
	// AndQueryParam method sets single parameter and its value.
	AndQueryParam(param, value string) HTTPRequest
	// WithQueryParams method sets multiple parameters and its values.
	WithQueryParams(params map[string]string) HTTPRequest
	// WithJSONBody method sets request body to the JSON value and Content-Type header to "application/json".
	WithJSONBody(body any) HTTPRequest
	// WithBody method sets request body.
	WithBody(body any) HTTPRequest
	// WithResult method registers the request `Result` value for automatic mapping.
	// Supported types are *[]byte, *string, io.Writer or a pointer to a JSON target.
	WithResult(result any) HTTPRequest
	// WithDecoding method sets how the body is decoded if there is no result defined by WithResult.
	WithDecoding(decoding Decoding) HTTPRequest
	// WithTimeout method sets deadline of the request.
	WithTimeout(timeout time.Duration) HTTPRequest
	// WithOnComplete method registers callback to be executed when the request is completed.
	WithOnComplete(func(ctx context.Context, sender Sender, response HTTPResponse, err error) error) HTTPRequest
	// WithOnSuccess method registers callback to be executed when the request is completed without an error.
	WithOnSuccess(func(ctx context.Context, sender Sender, response HTTPResponse) error) HTTPRequest
	// WithOnError method registers callback to be executed when the request is completed with an error.
	WithOnError(func(ctx context.Context, sender Sender, response HTTPResponse, err error) error) HTTPRequest
	// Send method sends defined request and returns response, mapped result and error.
	Send(ctx context.Context, sender Sender) (response HTTPResponse, result any, err error)
	SendOrErr(ctx context.Context, sender Sender) error
}

// HTTPResponse with response mapped to the Result() value.
type HTTPResponse interface {
	httpRequestReadOnly
	// ResponseHeader method returns HTTP response headers.
	ResponseHeader() http.Header
	// StatusCode method returns HTTP status code, 0 if there is no response.
	StatusCode() int
	// RawResponse method returns the standard HTTP response, nil if there is no response.
	RawResponse() *http.Response
	// IsSuccess method returns true if HTTP status `code >= 200 and <= 299` otherwise false.
	IsSuccess() bool
	// IsError method returns true if HTTP status `code >= 400` otherwise false.
	IsError() bool
	// Result method returns the decoded response, if any.
	Result() any
	// Error method returns the error of the request, if any.
	Error() error
}

// NewHTTPRequest creates immutable HTTP request.
func NewHTTPRequest() HTTPRequest {
	return httpRequest{header: make(http.Header)}
}

// httpRequest implements HTTPRequest interface.
type httpRequest struct {
	method      string
	url         string
	header      http.Header
	queryParams url.Values
	body        any
	resultDef   any
	decoding    Decoding
	timeout     time.Duration
	listeners   []func(ctx context.Context, sender Sender, response HTTPResponse, err error) error
}

// httpResponse implements HTTPResponse interface.
type httpResponse struct {
	httpRequest
	rawResponse *http.Response
	result      any
	err         error
}

func (r httpRequest) Method() string {
	if r.method == "" {
		return http.MethodGet
	}
	return r.method
}

func (r httpRequest) URL() string {
	return r.url
}

func (r httpRequest) RequestHeader() http.Header {
	return r.header
}

func (r httpRequest) QueryParams() url.Values {
	return r.queryParams
}

func (r httpRequest) RequestBody() any {
	return r.body
}

func (r httpRequest) ResultDef() any {
	return r.resultDef
}

func (r httpRequest) Decoding() Decoding {
	return r.decoding
}

func (r httpRequest) Timeout() time.Duration {
	return r.timeout
}

func (r httpRequest) WithGet(url string) HTTPRequest {
	return r.WithMethod(http.MethodGet).WithURL(url)
}

func (r httpRequest) WithPost(url string) HTTPRequest {
	return r.WithMethod(http.MethodPost).WithURL(url)
}

func (r httpRequest) WithPut(url string) HTTPRequest {
	return r.WithMethod(http.MethodPut).WithURL(url)
}

func (r httpRequest) WithDelete(url string) HTTPRequest {
	return r.WithMethod(http.MethodDelete).WithURL(url)
}

func (r httpRequest) WithMethod(method string) HTTPRequest {
	r.method = method
	return r
}

func (r httpRequest) WithURL(url string) HTTPRequest {
	r.url = url
	return r
}

func (r httpRequest) AndHeader(header string, value string) HTTPRequest {
	r.header = r.header.Clone()
	if r.header == nil {
		r.header = make(http.Header)
	}
	r.header.Set(header, value)
	return r
}

func (r httpRequest) WithHeaders(headers map[string]string) HTTPRequest {
	r.header = r.header.Clone()
	if r.header == nil {
		r.header = make(http.Header)
	}
	for k, v := range headers {
		r.header.Set(k, v)
	}
	return r
}

func (r httpRequest) AndQueryParam(key, value string) HTTPRequest {
	r.queryParams = cloneURLValues(r.queryParams)
	r.queryParams.Set(key, value)
	return r
}

func (r httpRequest) WithQueryParams(params map[string]string) HTTPRequest {
	r.queryParams = make(url.Values)
	for k, v := range params {
		r.queryParams.Set(k, v)
	}
	return r
}

func (r httpRequest) WithJSONBody(body any) HTTPRequest {
	r.body = body
	return r.AndHeader("Content-Type", ContentTypeApplicationJSON)
}

func (r httpRequest) WithBody(body any) HTTPRequest {
	r.body = body
	return r
}

func (r httpRequest) WithResult(result any) HTTPRequest {
	if _, ok := result.(io.Writer); !ok && reflect.ValueOf(result).Kind() != reflect.Ptr {
		panic(fmt.Errorf(`result must be defined by a pointer`))
	}
	r.resultDef = result
	return r
}

func (r httpRequest) WithDecoding(decoding Decoding) HTTPRequest {
	r.decoding = decoding
	return r
}

func (r httpRequest) WithTimeout(timeout time.Duration) HTTPRequest {
	r.timeout = timeout
	return r
}

func (r httpRequest) WithOnComplete(fn func(ctx context.Context, sender Sender, response HTTPResponse, err error) error) HTTPRequest {
	r.listeners = append(r.listeners[:len(r.listeners):len(r.listeners)], fn)
	return r
}

func (r httpRequest) WithOnSuccess(fn func(ctx context.Context, sender Sender, response HTTPResponse) error) HTTPRequest {
	return r.WithOnComplete(func(ctx context.Context, sender Sender, response HTTPResponse, err error) error {
		if err == nil {
			return fn(ctx, sender, response)
		}
		return err
	})
}

func (r httpRequest) WithOnError(fn func(ctx context.Context, sender Sender, response HTTPResponse, err error) error) HTTPRequest {
	return r.WithOnComplete(func(ctx context.Context, sender Sender, response HTTPResponse, err error) error {
		if err != nil {
			return fn(ctx, sender, response, err)
		}
		return err
	})
}

func (r httpRequest) Send(ctx context.Context, sender Sender) (HTTPResponse, any, error) {
	// Stop if context has been cancelled
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Send request
	rawResponse, result, err := sender.Send(ctx, r)
	out := &httpResponse{httpRequest: r, rawResponse: rawResponse, result: result, err: err}

	// Invoke listeners
	for _, fn := range r.listeners {
		// Stop if context has been cancelled
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		out.err = fn(ctx, sender, out, out.err)
	}

	return out, out.result, out.err
}

func (r httpRequest) SendOrErr(ctx context.Context, sender Sender) error {
	_, _, err := r.Send(ctx, sender)
	return err
}

func (r httpResponse) ResponseHeader() http.Header {
	if r.rawResponse == nil {
		return make(http.Header)
	}
	return r.rawResponse.Header
}

func (r httpResponse) StatusCode() int {
	if r.rawResponse == nil {
		return 0
	}
	return r.rawResponse.StatusCode
}

func (r httpResponse) RawResponse() *http.Response {
	return r.rawResponse
}

func (r httpResponse) IsSuccess() bool {
	return r.StatusCode() > 199 && r.StatusCode() < 300
}

func (r httpResponse) IsError() bool {
	return r.StatusCode() > 399
}

func (r httpResponse) Result() any {
	return r.result
}

func (r httpResponse) Error() error {
	return r.err
}

func cloneURLValues(in url.Values) (out url.Values) {
	out = make(url.Values, len(in))
	maps.Copy(out, in)
	for k, values := range out {
		out[k] = append([]string(nil), values...)
	}
	return out
}
