package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed transfer options.
	ErrValidation = errors.New("invalid transfer options")

	// ErrConnectivity indicates SOURCE or TARGET could not be reached.
	ErrConnectivity = errors.New("instance unreachable")

	// ErrPluginNotFound indicates a mandatory plugin is not registered.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrFetch indicates a workflow listing could not be retrieved.
	ErrFetch = errors.New("failed to fetch workflows")

	// ErrManagerBusy is returned when an operation is started while a transfer is running.
	ErrManagerBusy = errors.New("transfer already running")

	// ErrManagerUsed is returned when a finished manager is reused without Reset.
	ErrManagerUsed = errors.New("transfer manager already used")
)

// Error wraps a fatal pipeline error with the stage it happened in.
type Error struct {
	Op  string // validate_options, connectivity, load_plugins, fetch
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newError(op string, sentinel error, format string, args ...any) *Error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}
