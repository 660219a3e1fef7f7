package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// Framing constants.
const (
	// DefaultMaxLength is the default maximum line length in bytes,
	// excluding the terminating line feed.
	DefaultMaxLength = 1024

	// lineTerminator ends every encoded frame.
	lineTerminator = "\r\n"
)

// Decoding errors.
var (
	// ErrFrameTooLong indicates a line that exceeded the maximum length.
	// The decoder has already switched to discarding mode; the next call
	// resumes after the offending line.
	ErrFrameTooLong = errors.New("frame too long")

	// ErrInvalidText indicates a line that is not valid UTF-8.
	ErrInvalidText = errors.New("frame is not valid UTF-8")
)

// Codec is a stateful line decoder and encoder. A Codec belongs to exactly
// one connection and is not safe for concurrent use.
type Codec struct {
	// next is the offset in the caller's buffer up to which no line feed
	// was found during a previous call.
	next       int
	maxLength  int
	discarding bool
}

// New creates a codec with the default maximum line length.
func New() *Codec {
	return NewWithMaxLength(DefaultMaxLength)
}

// NewWithMaxLength creates a codec with a custom maximum line length.
// Non-positive values select DefaultMaxLength.
func NewWithMaxLength(maxLength int) *Codec {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Codec{maxLength: maxLength}
}

// MaxLength returns the maximum line length.
func (c *Codec) MaxLength() int {
	return c.maxLength
}

// Discarding reports whether the codec is skipping the rest of an oversized line.
func (c *Codec) Discarding() bool {
	return c.discarding
}

// Decode looks for the next complete frame in buf.
//
// It returns the decoded frame, or nil when buf holds no complete line yet,
// together with the number of bytes the caller must remove from the front
// of buf before the next call. Bytes beyond that count must be kept: the
// codec remembers how far it already scanned them.
//
// ErrFrameTooLong and ErrInvalidText are returned together with a non-zero
// consumed count; the offending bytes are gone and decoding may continue.
func (c *Codec) Decode(buf []byte) (Frame, int, error) {
	consumed := 0
	for {
		src := buf[consumed:]
		readTo := min(c.maxLength+1, len(src))
		if c.next > readTo {
			c.next = readTo
		}

		offset := bytes.IndexByte(src[c.next:readTo], '\n')

		switch {
		case c.discarding && offset >= 0:
			// End of the oversized line: drop it and resync.
			consumed += c.next + offset + 1
			c.discarding = false
			c.next = 0

		case c.discarding:
			consumed += readTo
			c.next = 0
			if consumed == len(buf) {
				return nil, consumed, nil
			}

		case offset >= 0:
			end := c.next + offset
			c.next = 0
			consumed += end + 1
			line := bytes.TrimSuffix(src[:end], []byte{'\r'})
			if !utf8.Valid(line) {
				return nil, consumed, ErrInvalidText
			}
			return Frame(strings.Split(string(line), FieldSeparator)), consumed, nil

		case len(src) > c.maxLength:
			c.discarding = true
			c.next = 0
			consumed += readTo
			return nil, consumed, ErrFrameTooLong

		default:
			c.next = readTo
			return nil, consumed, nil
		}
	}
}

// Encode writes f as one CRLF terminated line. Fields are not escaped.
func (c *Codec) Encode(w io.Writer, f Frame) error {
	_, err := w.Write(AppendFrame(nil, f))
	return err
}

// AppendFrame appends the wire form of f to dst and returns the extended slice.
func AppendFrame(dst []byte, f Frame) []byte {
	for i, field := range f {
		if i > 0 {
			dst = append(dst, FieldSeparator...)
		}
		dst = append(dst, field...)
	}
	return append(dst, lineTerminator...)
}

// EncodedLen returns the number of bytes AppendFrame produces for f.
func EncodedLen(f Frame) int {
	n := len(lineTerminator)
	for i, field := range f {
		if i > 0 {
			n += len(FieldSeparator)
		}
		n += len(field)
	}
	return n
}
