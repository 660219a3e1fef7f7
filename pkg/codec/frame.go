package codec

import (
	"errors"
	"fmt"
	"strings"
)

// FieldSeparator separates the fields of a frame.
const FieldSeparator = ","

// ErrInvalidField indicates a field that contains a separator character.
var ErrInvalidField = errors.New("field contains a separator")

// Frame is one protocol line split into its fields.
type Frame []string

// Tag returns field 0, or "" for an empty frame.
func (f Frame) Tag() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Args returns every field after the tag.
func (f Frame) Args() []string {
	if len(f) < 2 {
		return nil
	}
	return f[1:]
}

// String returns the frame as it appears on the wire, without CRLF.
func (f Frame) String() string {
	return strings.Join(f, FieldSeparator)
}

// Validate checks that no field would corrupt the framing.
func (f Frame) Validate() error {
	for i, field := range f {
		if strings.ContainsAny(field, ",\r\n") {
			return fmt.Errorf("%w: field %d %q", ErrInvalidField, i, field)
		}
	}
	return nil
}
