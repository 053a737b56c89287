package client

import (
	"os"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/cast"
)

// TestDumpEnv enables dumping of requests sent by the NewTestClient to stdout.
// The dump contains headers as they are, including tokens.
const TestDumpEnv = "WEBSTUFF_TEST_HTTP_DUMP"

// NewTestClient creates the Client for tests, see TestDumpEnv.
func NewTestClient() Client {
	c := New()
	if cast.ToBool(os.Getenv(TestDumpEnv)) { //nolint:forbidigo
		c = c.AndTrace(DumpTracer(os.Stdout))
	}
	return c
}

// NewMockedClient creates the test Client with the mocked transport.
func NewMockedClient() (Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	return NewTestClient().WithTransport(transport), transport
}
