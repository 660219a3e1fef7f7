package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/session"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// Gateway is the command surface of one controller.
type Gateway interface {
	// Ping checks that the device answers.
	Ping(ctx context.Context) error

	// Info returns the module name.
	Info(ctx context.Context) (string, error)

	// Authorize sets the session password.
	Authorize(ctx context.Context, password string) error

	// ConfigureEvent switches a class of unsolicited reports on or off.
	ConfigureEvent(ctx context.Context, kind wire.EventKind, enabled bool) error

	// Relay applies action to relay id, optionally releasing it after delay.
	Relay(ctx context.Context, id uint32, action wire.RelayAction, delay *wire.ClickDelay) error

	// RelayStatus reports whether relay id is energized.
	RelayStatus(ctx context.Context, id uint32) (bool, error)

	// LineSignal returns the level of input line id.
	LineSignal(ctx context.Context, id uint32) (wire.Signal, error)

	// Subscribe returns a stream of device events.
	Subscribe() *subscription.Subscription[wire.Event]

	// Close ends the connection.
	Close() error
}

// StreamGateway implements Gateway over a session.
type StreamGateway struct {
	session *session.Session
	logger  *slog.Logger
}

// Compile-time interface satisfaction check.
var _ Gateway = (*StreamGateway)(nil)

// Connect starts a session over rw and wraps it.
func Connect(rw io.ReadWriteCloser, opts ...session.Option) *StreamGateway {
	return New(session.New(rw, opts...))
}

// New wraps an existing session.
func New(s *session.Session) *StreamGateway {
	return &StreamGateway{session: s, logger: s.Logger()}
}

// Session returns the underlying session.
func (g *StreamGateway) Session() *session.Session {
	return g.session
}

// Done is closed when the underlying session ends.
func (g *StreamGateway) Done() <-chan struct{} {
	return g.session.Done()
}

// Err returns why the session ended, or nil while it is open.
func (g *StreamGateway) Err() error {
	return g.session.Err()
}

// Ping implements Gateway.
func (g *StreamGateway) Ping(ctx context.Context) error {
	resp, err := g.exchange(ctx, wire.Ping())
	if err != nil {
		return err
	}
	return g.check(wire.ParsePing(resp))
}

// Info implements Gateway.
func (g *StreamGateway) Info(ctx context.Context) (string, error) {
	resp, err := g.exchange(ctx, wire.Info())
	if err != nil {
		return "", err
	}
	name, err := wire.ParseInfo(resp)
	return name, g.check(err)
}

// Authorize implements Gateway.
func (g *StreamGateway) Authorize(ctx context.Context, password string) error {
	resp, err := g.exchange(ctx, wire.SetPassword(password))
	if err != nil {
		return err
	}
	return g.check(wire.ParseSetPassword(resp))
}

// ConfigureEvent implements Gateway.
func (g *StreamGateway) ConfigureEvent(ctx context.Context, kind wire.EventKind, enabled bool) error {
	resp, err := g.exchange(ctx, wire.ConfigureEvent(kind, enabled))
	if err != nil {
		return err
	}
	return g.check(wire.ParseConfigureEvent(resp, kind))
}

// Relay implements Gateway.
func (g *StreamGateway) Relay(ctx context.Context, id uint32, action wire.RelayAction, delay *wire.ClickDelay) error {
	resp, err := g.exchange(ctx, wire.Relay(id, action, delay))
	if err != nil {
		return err
	}
	return g.check(wire.ParseRelay(resp))
}

// RelayStatus implements Gateway.
func (g *StreamGateway) RelayStatus(ctx context.Context, id uint32) (bool, error) {
	resp, err := g.exchange(ctx, wire.RelayStatus(id))
	if err != nil {
		return false, err
	}
	on, err := wire.ParseRelayStatus(resp, id)
	return on, g.check(err)
}

// LineSignal implements Gateway.
func (g *StreamGateway) LineSignal(ctx context.Context, id uint32) (wire.Signal, error) {
	resp, err := g.exchange(ctx, wire.LineSignal(id))
	if err != nil {
		return wire.Low, err
	}
	sig, err := wire.ParseLineSignal(resp, id)
	return sig, g.check(err)
}

// Subscribe implements Gateway.
func (g *StreamGateway) Subscribe() *subscription.Subscription[wire.Event] {
	return g.session.Subscribe()
}

// Close implements Gateway.
func (g *StreamGateway) Close() error {
	return g.session.Close()
}

func (g *StreamGateway) exchange(ctx context.Context, cmd *wire.Command) (codec.Frame, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return g.session.Exchange(ctx, cmd.Frame())
}

// check logs replies that answer a different command: the session is
// probably out of step with the device.
func (g *StreamGateway) check(err error) error {
	if errors.Is(err, wire.ErrUnexpectedMessage) {
		g.logger.Warn("response does not match command", "error", err)
	}
	return err
}
