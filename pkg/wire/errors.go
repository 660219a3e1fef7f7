package wire

import (
	"errors"
	"fmt"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
)

// Protocol errors.
var (
	// ErrSyntax indicates the device answered with its generic error reply.
	ErrSyntax = errors.New("message syntax error")

	// ErrAuth indicates the device refused the password.
	ErrAuth = errors.New("authorization failed")

	// ErrUnexpectedMessage indicates a well-formed reply that does not match
	// the command it answers, e.g. a relay status for another relay.
	ErrUnexpectedMessage = errors.New("unexpected message")

	// ErrUnknownMessage indicates a frame outside the known grammar.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrInvalidPayload indicates a malformed numeric or signal field.
	ErrInvalidPayload = errors.New("invalid payload")
)

// ResponseError ties a protocol error to the exchange that produced it.
type ResponseError struct {
	// Command is the keyword of the command that was sent.
	Command string

	// Response is the frame the device answered with.
	Response codec.Frame

	// Err is one of the protocol sentinel errors, possibly wrapped.
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %v (response %q)", e.Command, e.Err, e.Response.String())
}

// Unwrap returns the underlying protocol error.
func (e *ResponseError) Unwrap() error {
	return e.Err
}

func responseError(cmd string, resp codec.Frame, err error) error {
	return &ResponseError{Command: cmd, Response: resp, Err: err}
}
