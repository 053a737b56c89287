// Package urlbuilder joins a base URL with endpoints and appends query strings.
//
// Values are written as they are, without encoding and without sorting.
// The caller is responsible for passing URL-safe values.
package urlbuilder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// Param is one key-value pair of the query string.
type Param struct {
	Key   string
	Value any
}

// Builder creates URLs relative to a base URL.
type Builder struct {
	baseURL string
	history *history
}

type history struct {
	lock sync.Mutex
	urls []string
}

type Option func(b *Builder)

// WithHistory enables recording of all built URLs, see Builder.History.
func WithHistory() Option {
	return func(b *Builder) {
		b.history = &history{}
	}
}

func New(baseURL string, opts ...Option) *Builder {
	b := &Builder{baseURL: baseURL}
	for _, o := range opts {
		o(b)
	}
	return b
}

// BaseURL returns the base URL the builder was created with.
func (b *Builder) BaseURL() string {
	return b.baseURL
}

// Build joins the base URL and the endpoint with exactly one slash and appends the params.
func (b *Builder) Build(endpoint string, params ...Param) string {
	out := AddQueryParams(join(b.baseURL, endpoint), params...)
	b.record(out)
	return out
}

// BuildOrdered is Build with params from an ordered map, in the order of its keys.
func (b *Builder) BuildOrdered(endpoint string, params *orderedmap.OrderedMap) string {
	return b.Build(endpoint, FromOrderedMap(params)...)
}

// History returns URLs built so far, empty if the history is not enabled.
func (b *Builder) History() []string {
	if b.history == nil {
		return []string{}
	}
	b.history.lock.Lock()
	defer b.history.lock.Unlock()
	out := make([]string, len(b.history.urls))
	copy(out, b.history.urls)
	return out
}

func (b *Builder) record(url string) {
	if b.history == nil {
		return
	}
	b.history.lock.Lock()
	defer b.history.lock.Unlock()
	b.history.urls = append(b.history.urls, url)
}

// AddQueryParams appends "?k1=v1&k2=v2" to the url, params are kept in the supplied order.
// The url is returned unchanged if there are no params.
func AddQueryParams(url string, params ...Param) string {
	if len(params) == 0 {
		return url
	}
	var sb strings.Builder
	sb.WriteString(url)
	for i, p := range params {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(toString(p.Value))
	}
	return sb.String()
}

// FromOrderedMap converts the map to params, nil map results in no params.
func FromOrderedMap(m *orderedmap.OrderedMap) []Param {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	out := make([]Param, 0, len(keys))
	for _, key := range keys {
		value, _ := m.Get(key)
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

func join(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func toString(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
