package wire

import (
	"strconv"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
)

// Command keywords.
const (
	KeywordInfo        = "INF"
	KeywordPassword    = "PSW"
	KeywordMessage     = "MSG"
	KeywordRelay       = "REL"
	KeywordRelayStatus = "RDR"
	KeywordLineSignal  = "RD"

	// keywordPing is the empty keyword of the bare "$KE" liveness check.
	keywordPing = ""
)

// Command is an ordered field builder for one outbound line. Fields are
// appended in call order after the selector.
type Command struct {
	keyword string
	fields  codec.Frame
}

// NewCommand starts a command with the given keyword. An empty keyword
// builds the bare selector line.
func NewCommand(keyword string) *Command {
	c := &Command{keyword: keyword, fields: codec.Frame{Selector}}
	if keyword != "" {
		c.fields = append(c.fields, keyword)
	}
	return c
}

// Str appends a text field.
func (c *Command) Str(s string) *Command {
	c.fields = append(c.fields, s)
	return c
}

// Uint appends a decimal field.
func (c *Command) Uint(v uint32) *Command {
	c.fields = append(c.fields, strconv.FormatUint(uint64(v), 10))
	return c
}

// Keyword returns the command keyword ("" for ping).
func (c *Command) Keyword() string {
	return c.keyword
}

// Name returns the keyword or "PING" for the bare selector.
func (c *Command) Name() string {
	if c.keyword == keywordPing {
		return "PING"
	}
	return c.keyword
}

// Frame returns a copy of the fields.
func (c *Command) Frame() codec.Frame {
	out := make(codec.Frame, len(c.fields))
	copy(out, c.fields)
	return out
}

// Validate checks that every field is safe to put on the wire.
func (c *Command) Validate() error {
	return c.fields.Validate()
}

// Ping builds the liveness check: $KE
func Ping() *Command {
	return NewCommand(keywordPing)
}

// Info builds the module identification query: $KE,INF
func Info() *Command {
	return NewCommand(KeywordInfo)
}

// SetPassword builds $KE,PSW,SET,<password>
func SetPassword(password string) *Command {
	return NewCommand(KeywordPassword).Str("SET").Str(password)
}

// ConfigureEvent builds $KE,MSG,S,<kind>,SET,<ON|OFF>
func ConfigureEvent(kind EventKind, enabled bool) *Command {
	state := "OFF"
	if enabled {
		state = "ON"
	}
	return NewCommand(KeywordMessage).Str("S").Str(kind.String()).Str("SET").Str(state)
}

// Relay builds $KE,REL,<id>,<action>[,<delay>]
func Relay(id uint32, action RelayAction, delay *ClickDelay) *Command {
	c := NewCommand(KeywordRelay).Uint(id).Str(action.Wire())
	if delay != nil {
		c.Str(delay.Wire())
	}
	return c
}

// RelayStatus builds $KE,RDR,<id>
func RelayStatus(id uint32) *Command {
	return NewCommand(KeywordRelayStatus).Uint(id)
}

// LineSignal builds $KE,RD,<id>
func LineSignal(id uint32) *Command {
	return NewCommand(KeywordLineSignal).Uint(id)
}
