package wire

import "github.com/laurent-protocol/laurent-go/pkg/codec"

// Reserved tags.
const (
	// Selector starts every outbound command.
	Selector = "$KE"

	// EventMarker tags unsolicited device notifications.
	EventMarker = "#M"
)

// Class tells events and responses apart.
type Class uint8

const (
	// ClassResponse is a reply to the outstanding command.
	ClassResponse Class = iota

	// ClassEvent is an unsolicited notification.
	ClassEvent
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassResponse:
		return "RESPONSE"
	case ClassEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// IsEvent reports whether f is an unsolicited notification.
func IsEvent(f codec.Frame) bool {
	return f.Tag() == EventMarker
}

// Classify returns the class of an inbound frame.
func Classify(f codec.Frame) Class {
	if IsEvent(f) {
		return ClassEvent
	}
	return ClassResponse
}
