package channel

import "errors"

// Domain-specific errors for the command channel.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout is returned when the external controller does not reach the
	// expected state within Config.Timeout.
	ErrTimeout = errors.New("channel: timed out waiting for controller")

	// ErrInvalidArgument is returned when a command name or argument value
	// cannot be written to the command file (it contains the field
	// delimiter or a line break).
	ErrInvalidArgument = errors.New("channel: invalid command argument")

	// ErrMalformedFile is returned when a protocol file is empty or lacks the
	// expected record layout.
	ErrMalformedFile = errors.New("channel: malformed protocol file")
)
