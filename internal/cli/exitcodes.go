package cli

import (
	"errors"

	"github.com/lodego/webstuff/internal/config"
	"github.com/lodego/webstuff/pkg/client"
	"github.com/lodego/webstuff/pkg/headers"
)

// Exit codes of the webstuff CLI.
const (
	// ExitSuccess indicates the command succeeded
	ExitSuccess = 0

	// ExitFailure indicates a generic failure, for example invalid CLI usage
	ExitFailure = 1

	// ExitConfigError indicates invalid configuration or arguments, nothing has been sent
	ExitConfigError = 3

	// ExitTransportError indicates a request could not be sent or the response could not be read
	ExitTransportError = 4

	// ExitDecodeError indicates a response body could not be decoded
	ExitDecodeError = 5
)

// ErrInvalidArgument is wrapped by errors of malformed command arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// ExitCode maps the error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, headers.ErrInvalidAuthorization),
		errors.Is(err, ErrInvalidArgument):
		return ExitConfigError
	case client.IsDecodeError(err):
		return ExitDecodeError
	case client.IsTransportError(err):
		return ExitTransportError
	default:
		return ExitFailure
	}
}
