package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventKind is a class of unsolicited reports that can be switched on or off.
type EventKind uint8

const (
	// EventKindInput reports digital input changes (EIN).
	EventKindInput EventKind = iota
	// EventKindTime reports uptime ticks (TIME).
	EventKindTime
	// EventKindRelay reports relay changes (RELE).
	EventKindRelay
	// EventKindIn reports input line states (IN).
	EventKindIn
	// EventKindOut reports output line states (OUT).
	EventKindOut
	// EventKindADC reports analog readings (ADVC).
	EventKindADC
	// EventKindPWM reports PWM changes (PWM).
	EventKindPWM
	// EventKindThermo reports 1-Wire temperature readings (1WT).
	EventKindThermo
)

var eventKindNames = [...]string{
	EventKindInput:  "EIN",
	EventKindTime:   "TIME",
	EventKindRelay:  "RELE",
	EventKindIn:     "IN",
	EventKindOut:    "OUT",
	EventKindADC:    "ADVC",
	EventKindPWM:    "PWM",
	EventKindThermo: "1WT",
}

// String returns the wire keyword.
func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "UNKNOWN"
}

// EventKinds returns every known kind.
func EventKinds() []EventKind {
	kinds := make([]EventKind, len(eventKindNames))
	for i := range kinds {
		kinds[i] = EventKind(i)
	}
	return kinds
}

// ParseEventKind parses a wire keyword, case-insensitively.
func ParseEventKind(s string) (EventKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range eventKindNames {
		if name == upper {
			return EventKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// RelayAction is the operation applied to a relay.
type RelayAction uint8

const (
	// RelayOff releases the relay.
	RelayOff RelayAction = 0
	// RelayOn energizes the relay.
	RelayOn RelayAction = 1
	// RelayToggle flips the relay.
	RelayToggle RelayAction = 2
)

// Wire returns the action code.
func (a RelayAction) Wire() string {
	return strconv.Itoa(int(a))
}

// String returns the action name.
func (a RelayAction) String() string {
	switch a {
	case RelayOff:
		return "OFF"
	case RelayOn:
		return "ON"
	case RelayToggle:
		return "TOGGLE"
	default:
		return "UNKNOWN"
	}
}

// ParseRelayAction parses "on", "off" or "toggle" (or the numeric codes).
func ParseRelayAction(s string) (RelayAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1":
		return RelayOn, nil
	case "off", "0":
		return RelayOff, nil
	case "toggle", "2":
		return RelayToggle, nil
	default:
		return 0, fmt.Errorf("unknown relay action %q (use: on, off, toggle)", s)
	}
}

// ClickDelay is how long a relay stays on before it is released again.
// The device counts either in tenths of a second or in whole seconds.
type ClickDelay struct {
	units     uint32
	subSecond bool
}

// Millis100 returns a delay of n hundred-millisecond units.
func Millis100(n uint32) ClickDelay {
	return ClickDelay{units: n, subSecond: true}
}

// Seconds returns a delay of n seconds.
func Seconds(n uint32) ClickDelay {
	return ClickDelay{units: n}
}

// ClickDelayFromDuration picks the sub-second form for durations under a
// second and whole seconds otherwise, rounding down.
func ClickDelayFromDuration(d time.Duration) ClickDelay {
	if d < time.Second {
		return Millis100(uint32(d / (100 * time.Millisecond)))
	}
	return Seconds(uint32(d / time.Second))
}

// Duration returns the delay as a time.Duration.
func (d ClickDelay) Duration() time.Duration {
	if d.subSecond {
		return time.Duration(d.units) * 100 * time.Millisecond
	}
	return time.Duration(d.units) * time.Second
}

// Wire returns ".N" for tenths of a second or "N" for seconds.
func (d ClickDelay) Wire() string {
	n := strconv.FormatUint(uint64(d.units), 10)
	if d.subSecond {
		return "." + n
	}
	return n
}

// String returns the delay as a duration string.
func (d ClickDelay) String() string {
	return d.Duration().String()
}

// ParseClickDelay parses the wire form ".N" or "N".
func ParseClickDelay(s string) (ClickDelay, error) {
	sub := strings.HasPrefix(s, ".")
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "."), 10, 32)
	if err != nil {
		return ClickDelay{}, fmt.Errorf("%w: click delay %q: %w", ErrInvalidPayload, s, err)
	}
	if sub {
		return Millis100(uint32(v)), nil
	}
	return Seconds(uint32(v)), nil
}
