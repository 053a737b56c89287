// Package headers constructs HTTP request headers.
//
// New returns JSON defaults (Accept and Content-Type), Update merges additional values
// and Authorization sets a Bearer or Basic "Authorization" header.
package headers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
)

const (
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	ContentTypeJSON     = "application/json"
)

// ErrInvalidAuthorization is returned if the credentials do not contain
// exactly one of: a bearer token, or a username and a password.
var ErrInvalidAuthorization = errors.New("invalid authorization")

// Headers is a mapping from a header name to its value.
// The zero value is an empty mapping ready to use.
type Headers struct {
	values map[string]string
}

// Credentials for the Authorization header. Empty string means the value is not set.
type Credentials struct {
	Bearer   string
	Username string
	Password string
}

// New creates Headers with the default JSON "Accept" and "Content-Type" values.
func New() *Headers {
	return &Headers{values: map[string]string{
		HeaderAccept:      ContentTypeJSON,
		HeaderContentType: ContentTypeJSON,
	}}
}

// Update merges pairs into the headers, existing keys are overwritten.
func (h *Headers) Update(pairs map[string]string) *Headers {
	if h.values == nil {
		h.values = make(map[string]string, len(pairs))
	}
	maps.Copy(h.values, pairs)
	return h
}

// Set sets a single header.
func (h *Headers) Set(key, value string) *Headers {
	return h.Update(map[string]string{key: value})
}

// Authorization sets the "Authorization" header.
// A bearer token results in "Bearer <token>",
// a username with a password results in "Basic <base64(username:password)>".
// Any other combination of credentials is rejected and the headers are not modified.
func (h *Headers) Authorization(c Credentials) error {
	value, err := c.authorizationValue()
	if err != nil {
		return err
	}
	h.Set(HeaderAuthorization, value)
	return nil
}

// Map returns a copy of the headers, empty if nothing is set.
func (h *Headers) Map() map[string]string {
	out := make(map[string]string, len(h.values))
	maps.Copy(out, h.values)
	return out
}

func (c Credentials) authorizationValue() (string, error) {
	hasBearer := c.Bearer != ""
	hasUser := c.Username != ""
	hasPass := c.Password != ""

	switch {
	case hasBearer && (hasUser || hasPass):
		return "", fmt.Errorf("%w: username and password cannot be combined with a bearer token", ErrInvalidAuthorization)
	case hasBearer:
		return "Bearer " + c.Bearer, nil
	case hasUser && hasPass:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password)), nil
	case hasUser || hasPass:
		return "", fmt.Errorf("%w: both username and password must be provided", ErrInvalidAuthorization)
	default:
		return "", fmt.Errorf("%w: username and password or bearer token must be provided", ErrInvalidAuthorization)
	}
}
