package log

import (
	"time"
)

// Event is a protocol capture record. Exactly one of the payload pointers is
// set. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the device address (host:port), when known.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Device is the module name reported by the controller, when known.
	Device string `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Session lifecycle
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn is device to client.
	DirectionIn Direction = 0
	// DirectionOut is client to device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the line layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the classified message layer.
	LayerWire Layer = 1
	// LayerSession is the session lifecycle layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name as printed by String.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerTransport, LayerWire, LayerSession} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a line or a classified message.
	CategoryMessage Category = 0
	// CategoryState is a lifecycle change.
	CategoryState Category = 1
	// CategoryError is an error report.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryMessage, CategoryState, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// FrameEvent captures one raw line at the transport layer.
type FrameEvent struct {
	// Size is the line size in bytes, CRLF included.
	Size int `cbor:"1,keyasint"`

	// Data is the raw line (may be truncated for long lines).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameData is how many bytes of a line a FrameEvent keeps.
const MaxFrameData = 256

// NewFrameEvent captures line, truncating the stored copy to MaxFrameData.
func NewFrameEvent(line []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(line)}
	n := len(line)
	if n > MaxFrameData {
		n = MaxFrameData
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), line[:n]...)
	return fe
}

// MessageEvent captures a classified protocol line at the wire layer.
type MessageEvent struct {
	// Type distinguishes command/response/notification.
	Type MessageType `cbor:"1,keyasint"`

	// Keyword is the command keyword, or the tag of an inbound line.
	Keyword string `cbor:"2,keyasint,omitempty"`

	// Fields are the line's fields in order.
	Fields []string `cbor:"3,keyasint,omitempty"`

	// Latency is the time from command write to response (responses only).
	Latency *time.Duration `cbor:"4,keyasint,omitempty"`
}

// MessageType distinguishes command/response/notification.
type MessageType uint8

const (
	// MessageTypeCommand is an outbound command.
	MessageTypeCommand MessageType = 0
	// MessageTypeResponse is the reply to a command.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification is an unsolicited event.
	MessageTypeNotification MessageType = 2
	// MessageTypeUnsolicited is a non-event line nobody asked for.
	MessageTypeUnsolicited MessageType = 3
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	case MessageTypeUnsolicited:
		return "UNSOLICITED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures session and connection lifecycle changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the reconnecting connection manager.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is a single session.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
