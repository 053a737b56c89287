package client

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes failures of the request itself from failures of the response processing.
type ErrorKind int

const (
	// KindTransport covers connection errors, DNS, TLS, timeouts, cancellation and invalid URLs.
	KindTransport ErrorKind = iota + 1
	// KindDecode covers a response body that cannot be decoded to the expected type.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RequestError is returned by a Sender if the request cannot be sent or its response cannot be decoded.
// HTTP error statuses are not errors, the response is decoded and returned.
type RequestError struct {
	Kind   ErrorKind
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Kind == KindDecode {
		return fmt.Sprintf(`cannot decode response of %s "%s": %s`, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf(`request %s "%s" failed: %s`, e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if the err is, or wraps, a RequestError of the KindTransport.
func IsTransportError(err error) bool {
	return isKind(err, KindTransport)
}

// IsDecodeError returns true if the err is, or wraps, a RequestError of the KindDecode.
func IsDecodeError(err error) bool {
	return isKind(err, KindDecode)
}

func isKind(err error, kind ErrorKind) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == kind
}

func transportError(method, url string, err error) *RequestError {
	return &RequestError{Kind: KindTransport, Method: method, URL: url, Err: err}
}

func decodeError(method, url string, err error) *RequestError {
	return &RequestError{Kind: KindDecode, Method: method, URL: url, Err: err}
}
