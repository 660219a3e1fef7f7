package wire

import (
	"fmt"
	"strconv"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
)

// Response tags.
const (
	tagOK    = "#OK"
	tagError = "#ERR"
	ok       = "OK"
	errReply = "ERR"
)

// isGenericError reports the bare "#ERR" reply every command may get.
func isGenericError(f codec.Frame) bool {
	return len(f) == 1 && f[0] == tagError
}

func tagFor(keyword string) string {
	return "#" + keyword
}

// ParsePing interprets the reply to Ping.
func ParsePing(f codec.Frame) error {
	switch {
	case len(f) == 1 && f[0] == tagOK:
		return nil
	case isGenericError(f):
		return responseError("PING", f, ErrSyntax)
	default:
		return responseError("PING", f, ErrUnknownMessage)
	}
}

// ParseInfo interprets the reply to Info and returns the module name.
func ParseInfo(f codec.Frame) (string, error) {
	switch {
	case len(f) == 2 && f[0] == tagFor(KeywordInfo):
		return f[1], nil
	case isGenericError(f):
		return "", responseError(KeywordInfo, f, ErrSyntax)
	default:
		return "", responseError(KeywordInfo, f, ErrUnknownMessage)
	}
}

// ParseSetPassword interprets the reply to SetPassword.
func ParseSetPassword(f codec.Frame) error {
	switch {
	case len(f) == 3 && f[0] == tagFor(KeywordPassword) && f[1] == "SET" && f[2] == ok:
		return nil
	case len(f) == 3 && (f[0] == tagFor(KeywordPassword) || f[0] == "$"+KeywordPassword) && f[1] == "SET" && f[2] == errReply:
		// Some firmware answers the refusal with the "$" prefix.
		return responseError(KeywordPassword, f, ErrAuth)
	case isGenericError(f):
		return responseError(KeywordPassword, f, ErrSyntax)
	default:
		return responseError(KeywordPassword, f, ErrUnknownMessage)
	}
}

// ParseConfigureEvent interprets the reply to ConfigureEvent for kind.
func ParseConfigureEvent(f codec.Frame, kind EventKind) error {
	if isGenericError(f) {
		return responseError(KeywordMessage, f, ErrSyntax)
	}
	if f.Tag() != tagFor(KeywordMessage) {
		return responseError(KeywordMessage, f, ErrUnknownMessage)
	}

	args := f.Args()
	switch {
	case len(args) == 1 && args[0] == ok:
		return nil
	case len(args) == 1 && args[0] == errReply:
		return responseError(KeywordMessage, f, ErrSyntax)
	case len(args) == 4 && args[0] == "S" && args[2] == "SET":
		if args[1] != kind.String() {
			return responseError(KeywordMessage, f,
				fmt.Errorf("%w: event kind %s, want %s", ErrUnexpectedMessage, args[1], kind))
		}
		switch args[3] {
		case ok:
			return nil
		case errReply:
			return responseError(KeywordMessage, f, ErrSyntax)
		}
	}
	return responseError(KeywordMessage, f, ErrUnknownMessage)
}

// ParseRelay interprets the reply to Relay.
func ParseRelay(f codec.Frame) error {
	switch {
	case len(f) == 2 && f[0] == tagFor(KeywordRelay) && f[1] == ok:
		return nil
	case len(f) == 2 && f[0] == tagFor(KeywordRelay) && f[1] == errReply:
		return responseError(KeywordRelay, f, ErrSyntax)
	case isGenericError(f):
		return responseError(KeywordRelay, f, ErrSyntax)
	default:
		return responseError(KeywordRelay, f, ErrUnknownMessage)
	}
}

// ParseRelayStatus interprets the reply to RelayStatus for relay id.
func ParseRelayStatus(f codec.Frame, id uint32) (bool, error) {
	signal, err := parseLineReply(KeywordRelayStatus, f, id)
	if err != nil {
		return false, err
	}
	return signal.Bool(), nil
}

// ParseLineSignal interprets the reply to LineSignal for line id.
func ParseLineSignal(f codec.Frame, id uint32) (Signal, error) {
	return parseLineReply(KeywordLineSignal, f, id)
}

// parseLineReply matches "#<keyword>,<id>,<0|1>".
func parseLineReply(keyword string, f codec.Frame, id uint32) (Signal, error) {
	if isGenericError(f) {
		return Low, responseError(keyword, f, ErrSyntax)
	}
	if len(f) != 3 || f[0] != tagFor(keyword) {
		return Low, responseError(keyword, f, ErrUnknownMessage)
	}

	got, err := parseUint32("id", f[1])
	if err != nil {
		return Low, responseError(keyword, f, err)
	}
	if got != id {
		return Low, responseError(keyword, f,
			fmt.Errorf("%w: id %s, want %s", ErrUnexpectedMessage, f[1], strconv.FormatUint(uint64(id), 10)))
	}

	signal, err := ParseSignal(f[2])
	if err != nil {
		return Low, responseError(keyword, f, err)
	}
	return signal, nil
}
