package urlbuilder

import (
	"fmt"
	"sync"
	"testing"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"
)

func TestBuild_Join(t *testing.T) {
	t.Parallel()

	cases := []struct{ base, endpoint, expected string }{
		{"https://httpbin.org/", "get", "https://httpbin.org/get"},
		{"https://httpbin.org", "get", "https://httpbin.org/get"},
		{"https://httpbin.org", "/get", "https://httpbin.org/get"},
		{"https://httpbin.org/", "/get", "https://httpbin.org/get"},
		{"https://httpbin.org///", "///get", "https://httpbin.org/get"},
		{"https://x/api/v1/", "users/1/", "https://x/api/v1/users/1/"},
		{"https://x", "", "https://x/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, New(tc.base).Build(tc.endpoint), fmt.Sprintf("%s + %s", tc.base, tc.endpoint))
	}
}

func TestBuild_Params(t *testing.T) {
	t.Parallel()

	b := New("https://x")
	assert.Equal(t, "https://x/y?a=1&b=2", b.Build("y", Param{"a", 1}, Param{"b", 2}))
	assert.Equal(t, "https://x/y?b=2&a=1", b.Build("y", Param{"b", 2}, Param{"a", 1}))
	assert.Equal(t, "https://x/y?flag=true&ratio=1.5&name=foo bar", b.Build("y",
		Param{"flag", true},
		Param{"ratio", 1.5},
		Param{"name", "foo bar"},
	))
}

func TestBuildOrdered(t *testing.T) {
	t.Parallel()

	params := orderedmap.FromPairs([]orderedmap.Pair{
		{Key: "z", Value: "last-key-first"},
		{Key: "a", Value: 1},
	})
	assert.Equal(t, "https://x/y?z=last-key-first&a=1", New("https://x").BuildOrdered("y", params))
	assert.Equal(t, "https://x/y", New("https://x").BuildOrdered("y", nil))
	assert.Equal(t, "https://x/y", New("https://x").BuildOrdered("y", orderedmap.New()))
}

func TestAddQueryParams(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x/y", AddQueryParams("https://x/y"))
	assert.Equal(t, "https://x/y?a=1", AddQueryParams("https://x/y", Param{"a", "1"}))

	// Struct values cannot be cast, they are formatted
	type point struct{ X, Y int }
	assert.Equal(t, "u?p={1 2}", AddQueryParams("u", Param{"p", point{1, 2}}))
}

func TestHistory(t *testing.T) {
	t.Parallel()

	off := New("https://x")
	off.Build("a")
	assert.Empty(t, off.History())

	on := New("https://x", WithHistory())
	on.Build("a")
	on.Build("b", Param{"k", "v"})
	assert.Equal(t, []string{"https://x/a", "https://x/b?k=v"}, on.History())

	// Returned slice is a copy
	h := on.History()
	h[0] = "changed"
	assert.Equal(t, "https://x/a", on.History()[0])
}

func TestHistory_Concurrent(t *testing.T) {
	t.Parallel()

	b := New("https://x", WithHistory())
	wg := &sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Build(fmt.Sprintf("item/%d", i))
		}()
	}
	wg.Wait()
	assert.Len(t, b.History(), 50)
}
