// Package webservice sends single GET, POST, PUT and DELETE requests and decodes their bodies.
//
// GET responses are decoded by the response content type: JSON to a JSON value, text to a string,
// anything else to bytes. POST, PUT and DELETE responses are always decoded as JSON.
//
// Failures are logged and returned to the caller as *client.RequestError.
// A non-2xx status is not a failure, the decoded body is returned.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lodego/webstuff/pkg/client"
	"github.com/lodego/webstuff/pkg/logger"
)

const LoggerName = "WebService"

// Options of a single request.
type Options struct {
	// Headers of the request.
	Headers map[string]string
	// JSON body of the request, it is ignored if nil.
	JSON any
	// Query parameters, they are encoded and appended to the URL.
	Query map[string]string
	// Timeout of the request, zero means the sender default.
	Timeout time.Duration
	// Log enables the "Received response" line.
	Log bool
}

// Service sends requests through the sender and logs them to the logger.
type Service struct {
	sender client.Sender
	logger *logger.Logger
}

func New(sender client.Sender, log *logger.Logger) *Service {
	if sender == nil {
		panic(fmt.Errorf("sender cannot be nil"))
	}
	if log == nil {
		panic(fmt.Errorf("logger cannot be nil"))
	}
	return &Service{sender: sender, logger: log}
}

// NewDefault creates the Service with the native client and the "WebService" logger.
// Each request uses its own transport session.
func NewDefault() *Service {
	return New(client.New(), logger.Get(LoggerName))
}

// Logger returns the logger of the service.
func (s *Service) Logger() *logger.Logger {
	return s.logger
}

// Get sends a GET request, the body is decoded by the response content type.
func (s *Service) Get(ctx context.Context, url string, opts Options) (any, error) {
	return s.do(ctx, http.MethodGet, url, client.DecodeByContentType, opts)
}

// Post sends a POST request, the body is decoded as JSON.
func (s *Service) Post(ctx context.Context, url string, opts Options) (any, error) {
	return s.do(ctx, http.MethodPost, url, client.DecodeJSON, opts)
}

// Put sends a PUT request, the body is decoded as JSON.
func (s *Service) Put(ctx context.Context, url string, opts Options) (any, error) {
	return s.do(ctx, http.MethodPut, url, client.DecodeJSON, opts)
}

// Delete sends a DELETE request, the body is decoded as JSON.
func (s *Service) Delete(ctx context.Context, url string, opts Options) (any, error) {
	return s.do(ctx, http.MethodDelete, url, client.DecodeJSON, opts)
}

func (s *Service) do(ctx context.Context, method, url string, decoding client.Decoding, opts Options) (any, error) {
	req := client.NewHTTPRequest().
		WithMethod(method).
		WithURL(url).
		WithHeaders(opts.Headers).
		WithQueryParams(opts.Query).
		WithDecoding(decoding).
		WithTimeout(opts.Timeout)
	if opts.JSON != nil {
		req = req.WithJSONBody(opts.JSON)
	}

	res, result, err := s.sender.Send(ctx, req)
	if opts.Log && res != nil {
		s.logger.Info(fmt.Sprintf("Received response from %s: %d", url, res.StatusCode))
	}
	if err != nil {
		s.logger.Error(fmt.Sprintf("Caught an exception while attempting to send '%s' request to URL: '%s': %s", method, url, cause(err)))
		return nil, err
	}
	return result, nil
}

// cause returns the message of the underlying error, the method and the URL are already part of the log line.
func cause(err error) string {
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return reqErr.Err.Error()
	}
	return err.Error()
}
