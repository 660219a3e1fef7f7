package session

import (
	"errors"
	"fmt"
)

// ErrClosed indicates the session has ended. Errors returned after
// termination match it with errors.Is.
var ErrClosed = errors.New("session closed")

// ErrDesync is the cause when the device stopped answering and responses
// can no longer be paired with commands.
var ErrDesync = errors.New("response pairing lost")

// ClosedError reports why a session ended.
type ClosedError struct {
	// Cause is the terminal error, or nil when Close was called.
	Cause error
}

func (e *ClosedError) Error() string {
	if e.Cause == nil {
		return ErrClosed.Error()
	}
	return fmt.Sprintf("%v: %v", ErrClosed, e.Cause)
}

// Unwrap exposes both ErrClosed and the cause to errors.Is and errors.As.
func (e *ClosedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrClosed}
	}
	return []error{ErrClosed, e.Cause}
}

// TransportError is an I/O failure on the underlying stream.
type TransportError struct {
	// Op is "read" or "write".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the I/O error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
