package wire

import "fmt"

// Signal is the level of a digital line.
type Signal uint8

const (
	// Low is a logical 0.
	Low Signal = 0

	// High is a logical 1.
	High Signal = 1
)

// SignalFromBool maps true to High.
func SignalFromBool(v bool) Signal {
	if v {
		return High
	}
	return Low
}

// ParseSignal parses the wire form "0" or "1".
func ParseSignal(s string) (Signal, error) {
	switch s {
	case "1":
		return High, nil
	case "0":
		return Low, nil
	default:
		return Low, fmt.Errorf("%w: signal level must be 0 or 1, got %q", ErrInvalidPayload, s)
	}
}

// Bool returns true for High.
func (s Signal) Bool() bool {
	return s == High
}

// Wire returns "1" or "0".
func (s Signal) Wire() string {
	if s == High {
		return "1"
	}
	return "0"
}

// String returns the level name.
func (s Signal) String() string {
	switch s {
	case High:
		return "HIGH"
	case Low:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}
