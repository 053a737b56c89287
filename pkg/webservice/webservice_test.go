package webservice_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodego/webstuff/pkg/client"
	"github.com/lodego/webstuff/pkg/headers"
	"github.com/lodego/webstuff/pkg/logger"
	"github.com/lodego/webstuff/pkg/urlbuilder"
	. "github.com/lodego/webstuff/pkg/webservice"
)

func newMockedService(t *testing.T) (*Service, *httpmock.MockTransport, *strings.Builder) {
	t.Helper()
	c, transport := client.NewMockedClient()
	out := &strings.Builder{}
	log := logger.Get(LoggerName, logger.WithWriter(out), logger.WithColor(false))
	out.Reset()
	return New(c, log), transport, out
}

func responder(status int, contentType, body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewStringResponse(status, body)
		res.Header.Set("Content-Type", contentType)
		return res, nil
	}
}

func TestService_Get_DecodeByContentType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		contentType string
		body        string
		expected    any
	}{
		{contentType: "application/json", body: `{"foo":"bar","n":1}`, expected: map[string]any{"foo": "bar", "n": float64(1)}},
		{contentType: "application/json; charset=utf-8", body: `[1,2]`, expected: []any{float64(1), float64(2)}},
		{contentType: "application/problem+json", body: `{"title":"x"}`, expected: map[string]any{"title": "x"}},
		{contentType: "text/plain", body: "plain text", expected: "plain text"},
		{contentType: "text/html; charset=utf-8", body: "<p>html</p>", expected: "<p>html</p>"},
		{contentType: "image/png", body: "\x89PNG", expected: []byte("\x89PNG")},
		{contentType: "", body: "raw", expected: []byte("raw")},
		{contentType: "application/json", body: "", expected: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.contentType+" "+tc.body, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s, transport, _ := newMockedService(t)
			transport.RegisterResponder(http.MethodGet, "https://example.com/get", responder(200, tc.contentType, tc.body))

			result, err := s.Get(ctx, "https://example.com/get", Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestService_JSONVerbs(t *testing.T) {
	t.Parallel()

	verbs := map[string]func(s *Service, ctx context.Context, url string, opts Options) (any, error){
		http.MethodPost:   (*Service).Post,
		http.MethodPut:    (*Service).Put,
		http.MethodDelete: (*Service).Delete,
	}

	for method, fn := range verbs {
		method, fn := method, fn
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s, transport, out := newMockedService(t)

			// Content type is ignored, the body is always decoded as JSON
			transport.RegisterResponder(method, "https://example.com/resource", func(req *http.Request) (*http.Response, error) {
				var body []byte
				if req.Body != nil {
					var err error
					if body, err = io.ReadAll(req.Body); err != nil {
						return nil, err
					}
				}
				res := httpmock.NewStringResponse(200, `{"method":"`+req.Method+`","body":`+orNull(string(body))+`}`)
				res.Header.Set("Content-Type", "text/plain")
				return res, nil
			})

			opts := Options{Headers: headers.New().Map(), Log: true}
			if method != http.MethodDelete {
				opts.JSON = map[string]any{"test_key": "test_value"}
			}
			result, err := fn(s, ctx, "https://example.com/resource", opts)
			require.NoError(t, err)

			expected := map[string]any{"method": method, "body": nil}
			if method != http.MethodDelete {
				expected["body"] = map[string]any{"test_key": "test_value"}
			}
			assert.Equal(t, expected, result)
			wildcards.Assert(t, "[%s] [WebService] Received response from https://example.com/resource: 200\n", out.String())
		})
	}
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func TestService_Options(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, transport, out := newMockedService(t)

	var reqHeader http.Header
	var rawQuery string
	transport.RegisterResponder(http.MethodGet, "https://example.com/get", func(req *http.Request) (*http.Response, error) {
		reqHeader = req.Header.Clone()
		rawQuery = req.URL.RawQuery
		return httpmock.NewStringResponse(200, "OK"), nil
	})

	h := headers.New().Update(map[string]string{"X-Test-Header": "test-value"})
	require.NoError(t, h.Authorization(headers.Credentials{Bearer: "tok"}))
	_, err := s.Get(ctx, "https://example.com/get", Options{
		Headers: h.Map(),
		Query:   map[string]string{"page": "2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-value", reqHeader.Get("X-Test-Header"))
	assert.Equal(t, "Bearer tok", reqHeader.Get("Authorization"))
	assert.Equal(t, "application/json", reqHeader.Get("Accept"))
	assert.Equal(t, "page=2", rawQuery)

	// Log is disabled
	assert.Empty(t, out.String())
}

func TestService_URLBuilder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, transport, _ := newMockedService(t)

	var rawQuery string
	transport.RegisterResponder(http.MethodGet, "https://httpbin.org/get", func(req *http.Request) (*http.Response, error) {
		rawQuery = req.URL.RawQuery
		return httpmock.NewStringResponse(200, "OK"), nil
	})

	url := urlbuilder.New("https://httpbin.org/").Build("/get", urlbuilder.Param{Key: "b", Value: 2}, urlbuilder.Param{Key: "a", Value: 1})
	assert.Equal(t, "https://httpbin.org/get?b=2&a=1", url)

	_, err := s.Get(ctx, url, Options{})
	require.NoError(t, err)
	assert.Equal(t, "b=2&a=1", rawQuery)
}

func TestService_ErrorStatusIsNotError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, transport, out := newMockedService(t)
	transport.RegisterResponder(http.MethodDelete, "https://example.com/missing", responder(404, "application/json", `{"error":"not found"}`))

	result, err := s.Delete(ctx, "https://example.com/missing", Options{Log: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "not found"}, result)
	wildcards.Assert(t, "[%s] [WebService] Received response from https://example.com/missing: 404\n", out.String())
}

func TestService_TransportError(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		method := method
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s, transport, out := newMockedService(t)
			transport.RegisterResponder(method, "https://example.com/fail", httpmock.NewErrorResponder(errors.New("connection refused")))

			var result any
			var err error
			switch method {
			case http.MethodGet:
				result, err = s.Get(ctx, "https://example.com/fail", Options{Log: true})
			case http.MethodPost:
				result, err = s.Post(ctx, "https://example.com/fail", Options{Log: true, JSON: map[string]any{"a": 1}})
			case http.MethodPut:
				result, err = s.Put(ctx, "https://example.com/fail", Options{Log: true, JSON: map[string]any{"a": 1}})
			case http.MethodDelete:
				result, err = s.Delete(ctx, "https://example.com/fail", Options{Log: true})
			}

			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, client.IsTransportError(err))
			assert.Equal(t, `request `+method+` "https://example.com/fail" failed: connection refused`, err.Error())

			var reqErr *client.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, method, reqErr.Method)
			assert.Equal(t, "https://example.com/fail", reqErr.URL)

			// No response, no "Received response" line
			wildcards.Assert(t, "[%s] [WebService] Caught an exception while attempting to send '"+method+"' request to URL: 'https://example.com/fail': connection refused\n", out.String())
		})
	}
}

func TestService_DecodeError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, transport, out := newMockedService(t)
	transport.RegisterResponder(http.MethodPost, "https://example.com/post", responder(502, "text/html", "<html>Bad Gateway</html>"))

	result, err := s.Post(ctx, "https://example.com/post", Options{Log: true, JSON: map[string]any{"a": 1}})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, client.IsDecodeError(err))

	expected := `
[%s] [WebService] Received response from https://example.com/post: 502
[%s] [WebService] Caught an exception while attempting to send 'POST' request to URL: 'https://example.com/post': cannot decode JSON result: %s
`
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), out.String())
}

func TestService_InvalidURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, out := newMockedService(t)

	_, err := s.Get(ctx, "://invalid", Options{})
	require.Error(t, err)
	assert.True(t, client.IsTransportError(err))
	wildcards.Assert(t, "[%s] [WebService] Caught an exception while attempting to send 'GET' request to URL: '://invalid': invalid url: %s\n", out.String())
}

func TestService_Timeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, transport, out := newMockedService(t)
	transport.RegisterResponder(http.MethodGet, "https://example.com/slow", func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := s.Get(ctx, "https://example.com/slow", Options{Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, client.IsTransportError(err))
	assert.Contains(t, err.Error(), "timeout after")
	assert.Contains(t, out.String(), "'GET' request to URL: 'https://example.com/slow': timeout after")
}

func TestService_EchoServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		w.Header().Set("Content-Type", req.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	out := &strings.Builder{}
	s := New(client.New(), logger.Get(LoggerName, logger.WithWriter(out), logger.WithColor(false)))

	url := urlbuilder.New(srv.URL + "/").Build("post")
	result, err := s.Post(ctx, url, Options{
		Headers: headers.New().Map(),
		JSON:    map[string]any{"test_key": "test_value"},
		Log:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"test_key": "test_value"}, result)
	assert.Contains(t, out.String(), "Received response from "+srv.URL+"/post: 200")
}

func TestNew_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(nil, logger.Get("x", logger.WithWriter(io.Discard))) })
	assert.Panics(t, func() { New(client.New(), nil) })
}
