package wire

import (
	"fmt"
	"strconv"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
)

// Event is a parsed device notification. The concrete type is one of
// InputChange or TimeTick.
type Event interface {
	// Kind returns the report class the event belongs to.
	Kind() EventKind

	// Frame returns the wire form of the event, marker included.
	Frame() codec.Frame

	isEvent()
}

// InputChange reports a level change on a digital input line.
type InputChange struct {
	Line   uint32
	Signal Signal
}

// Kind implements Event.
func (InputChange) Kind() EventKind { return EventKindInput }

// Frame implements Event.
func (e InputChange) Frame() codec.Frame {
	return codec.Frame{EventMarker, EventKindInput.String(), strconv.FormatUint(uint64(e.Line), 10), e.Signal.Wire()}
}

func (InputChange) isEvent() {}

// String returns a short description.
func (e InputChange) String() string {
	return fmt.Sprintf("input %d %s", e.Line, e.Signal)
}

// TimeTick is the periodic uptime report.
type TimeTick struct {
	Seconds uint32
}

// Kind implements Event.
func (TimeTick) Kind() EventKind { return EventKindTime }

// Frame implements Event.
func (e TimeTick) Frame() codec.Frame {
	return codec.Frame{EventMarker, EventKindTime.String(), strconv.FormatUint(uint64(e.Seconds), 10)}
}

func (TimeTick) isEvent() {}

// String returns a short description.
func (e TimeTick) String() string {
	return fmt.Sprintf("time %ds", e.Seconds)
}

// Compile-time interface satisfaction checks.
var (
	_ Event = InputChange{}
	_ Event = TimeTick{}
)

// ParseEvent parses an event frame, marker included.
func ParseEvent(f codec.Frame) (Event, error) {
	if !IsEvent(f) {
		return nil, fmt.Errorf("%w: not an event frame %q", ErrUnknownMessage, f.String())
	}

	payload := f.Args()
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty event", ErrUnknownMessage)
	}

	switch {
	case payload[0] == EventKindInput.String() && len(payload) == 3:
		line, err := parseUint32("line", payload[1])
		if err != nil {
			return nil, err
		}
		signal, err := ParseSignal(payload[2])
		if err != nil {
			return nil, err
		}
		return InputChange{Line: line, Signal: signal}, nil

	case payload[0] == EventKindTime.String() && len(payload) == 2:
		secs, err := parseUint32("time", payload[1])
		if err != nil {
			return nil, err
		}
		return TimeTick{Seconds: secs}, nil

	default:
		return nil, fmt.Errorf("%w: event %q", ErrUnknownMessage, f.String())
	}
}

// parseUint32 parses a decimal protocol field.
func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", ErrInvalidPayload, name, s, err)
	}
	return uint32(v), nil
}
