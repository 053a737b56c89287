package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestySender is an implementation of the Sender interface by the go-resty library.
// Unlike Client, it keeps one pooled resty client for all requests.
// Results and errors are the same as from Client.
type RestySender struct {
	client  *resty.Client
	baseURL *url.URL
}

type RestyOption func(s *RestySender)

// WithRestyBaseURL sets base url of relative request URLs.
func WithRestyBaseURL(baseURLStr string) RestyOption {
	return func(s *RestySender) {
		baseURL, err := url.Parse(baseURLStr)
		if err != nil {
			panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
		}
		s.baseURL = baseURL
	}
}

// WithRestyTransport sets transport of the resty client, for example a mocked transport.
func WithRestyTransport(transport http.RoundTripper) RestyOption {
	return func(s *RestySender) {
		s.client.SetTransport(transport)
	}
}

// WithRestyTimeout sets the default timeout of a request.
func WithRestyTimeout(timeout time.Duration) RestyOption {
	return func(s *RestySender) {
		s.client.SetTimeout(timeout)
	}
}

// WithRestyHeaders sets common headers.
func WithRestyHeaders(headers map[string]string) RestyOption {
	return func(s *RestySender) {
		s.client.SetHeaders(headers)
	}
}

// NewRestySender creates new RestySender with the default headers of the Client.
func NewRestySender(opts ...RestyOption) *RestySender {
	s := &RestySender{client: resty.New()}
	s.client.SetTransport(DefaultTransport())
	s.client.SetHeader("User-Agent", DefaultUserAgent)
	s.client.SetHeader("Accept-Encoding", DefaultAcceptEncoding)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Send method sends HTTP request and returns HTTP response, it implements the Sender interface.
func (s *RestySender) Send(ctx context.Context, reqDef HTTPRequest) (*http.Response, any, error) {
	method := reqDef.Method()
	reqURLStr := reqDef.URL()

	startedAt := time.Now()
	if timeout := reqDef.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// The query is appended by resty
	reqURL, err := resolveURL(s.baseURL, reqURLStr)
	if err != nil {
		return nil, nil, transportError(method, reqURLStr, err)
	}
	fullURL := appendQuery(*reqURL, reqDef.QueryParams())

	req := s.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	for k, values := range reqDef.RequestHeader() {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if len(reqDef.QueryParams()) > 0 {
		req.SetQueryParamsFromValues(reqDef.QueryParams())
	}
	if body := reqDef.RequestBody(); body != nil {
		getBody, err := requestBody(body)
		if err != nil {
			return nil, nil, transportError(method, fullURL.String(), err)
		}
		reader, err := getBody()
		if err != nil {
			return nil, nil, transportError(method, fullURL.String(), err)
		}
		req.SetBody(reader)
	}

	resp, err := req.Execute(method, reqURL.String())
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		return nil, nil, handleSendError(ctx, startedAt, method, fullURL.String(), err)
	}

	res := resp.RawResponse
	defer res.Body.Close()

	result, readErr, decodeErr := readResult(res, reqDef)
	switch {
	case readErr != nil:
		return res, nil, handleSendError(ctx, startedAt, method, fullURL.String(), readErr)
	case decodeErr != nil:
		return res, nil, decodeError(method, fullURL.String(), decodeErr)
	}
	return res, result, nil
}
