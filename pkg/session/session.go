package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/log"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// State is the lifecycle state of a session.
type State uint8

const (
	// StateOpen means the session accepts exchanges.
	StateOpen State = iota
	// StateClosed means the session has ended.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// readResult is one chunk handed from the reader pump to the loop.
type readResult struct {
	data []byte
	err  error
}

// outbound is a command accepted for writing.
type outbound struct {
	frame   codec.Frame
	keyword string
}

// Session is a live connection to one controller.
type Session struct {
	id      string
	remote  string
	rw      io.ReadWriteCloser
	logger  *slog.Logger
	plog    log.Logger
	timeout time.Duration

	bus *subscription.Bus[wire.Event]

	// access admits one exchange at a time.
	access chan struct{}
	// stale counts responses owed to callers that gave up. Guarded by access.
	stale int

	commands  chan outbound
	responses chan codec.Frame

	// fail carries a terminal cause raised outside the loop.
	fail chan error

	closing   chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
	done      chan struct{}
	err       error

	transportOnce sync.Once
	transportErr  error

	wg sync.WaitGroup

	// Owned by the loop goroutine.
	codec       *codec.Codec
	buf         []byte
	wbuf        []byte
	readSize    int
	outstanding int
	sentAt      time.Time
}

// New starts a session over rw. The session takes ownership of rw and
// closes it when it ends.
func New(rw io.ReadWriteCloser, opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ConnectionID == "" {
		cfg.ConnectionID = uuid.NewString()
	}
	if cfg.RemoteAddr == "" {
		if ra, ok := rw.(interface{ RemoteAddr() net.Addr }); ok && ra.RemoteAddr() != nil {
			cfg.RemoteAddr = ra.RemoteAddr().String()
		}
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	s := &Session{
		id:        cfg.ConnectionID,
		remote:    cfg.RemoteAddr,
		rw:        rw,
		logger:    logger.With("conn_id", cfg.ConnectionID),
		plog:      plog,
		timeout:   cfg.Timeout,
		bus:       subscription.NewBus[wire.Event](cfg.EventHistory),
		access:    make(chan struct{}, 1),
		commands:  make(chan outbound, 1),
		responses: make(chan codec.Frame, 1),
		fail:      make(chan error, 1),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		codec:     codec.NewWithMaxLength(cfg.MaxLineLength),
		readSize:  cfg.ReadBufferSize,
	}

	s.logState("", StateOpen.String(), "")
	s.logger.Debug("session started", "remote", s.remote)

	reads := make(chan readResult)
	s.wg.Add(2)
	go s.readPump(reads)
	go s.loop(reads)
	return s
}

// ID returns the connection ID.
func (s *Session) ID() string {
	return s.id
}

// Logger returns the operational logger, tagged with the connection ID.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// RemoteAddr returns the device address, if known.
func (s *Session) RemoteAddr() string {
	return s.remote
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	select {
	case <-s.done:
		return StateClosed
	default:
		return StateOpen
	}
}

// Done returns a channel that is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns nil while the session is open, and a *ClosedError afterwards.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Subscribe returns a new event subscription. Events received before the
// call are not replayed. The subscription ends when the session does.
func (s *Session) Subscribe() *subscription.Subscription[wire.Event] {
	return s.bus.Subscribe()
}

// Exchange sends one command and returns the device's response to it.
// Concurrent calls are served one at a time, in no particular order.
func (s *Session) Exchange(ctx context.Context, cmd codec.Frame) (codec.Frame, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if len(cmd) == 0 {
		return nil, codec.ErrInvalidField
	}
	// The device reads at most one line of MaxLength bytes before the LF.
	if n := codec.EncodedLen(cmd) - 1; n > s.codec.MaxLength() {
		return nil, fmt.Errorf("%w: command is %d bytes, limit %d", codec.ErrFrameTooLong, n, s.codec.MaxLength())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.access <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, s.err
	}
	defer func() { <-s.access }()

	for s.stale > 0 {
		select {
		case resp := <-s.responses:
			s.stale--
			s.logger.Debug("discarded stale response", "response", resp.String())
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ctx.Err()
			}
			// A reply owed to an earlier caller never came. Later replies
			// can no longer be paired with their commands.
			s.logger.Warn("device stopped answering, closing session", "owed", s.stale)
			s.abort(ErrDesync)
			return nil, &ClosedError{Cause: ErrDesync}
		case <-s.done:
			return nil, s.err
		}
	}

	keyword := ""
	if len(cmd) > 1 {
		keyword = cmd[1]
	}

	select {
	case s.commands <- outbound{frame: cmd, keyword: keyword}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, s.err
	}

	select {
	case resp := <-s.responses:
		return resp, nil
	case <-ctx.Done():
		s.stale++
		return nil, ctx.Err()
	case <-s.done:
		// The loop may have delivered the response right before ending.
		select {
		case resp := <-s.responses:
			return resp, nil
		default:
		}
		return nil, s.err
	}
}

// Close ends the session and waits for its goroutines to exit. It returns
// the error from closing the transport, if any.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	// Unblocks a loop stuck in Write and the pump stuck in Read.
	s.closeTransport()
	<-s.done
	s.wg.Wait()
	return s.transportErr
}

// abort asks the loop to end the session with cause.
func (s *Session) abort(cause error) {
	select {
	case s.fail <- cause:
	default:
	}
}

func (s *Session) closeTransport() {
	s.transportOnce.Do(func() {
		s.transportErr = s.rw.Close()
	})
}

func (s *Session) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// readPump is the only reader of the transport.
func (s *Session) readPump(out chan<- readResult) {
	defer s.wg.Done()

	buf := make([]byte, s.readSize)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- readResult{data: chunk}:
			case <-s.stopped:
				return
			}
		}
		if err != nil {
			select {
			case out <- readResult{err: err}:
			case <-s.stopped:
			}
			return
		}
	}
}

// loop is the only writer of the transport and owns the codec.
func (s *Session) loop(reads <-chan readResult) {
	defer s.wg.Done()

	var cause error
	for cause == nil {
		select {
		case r := <-reads:
			if r.err != nil {
				cause = &TransportError{Op: "read", Err: r.err}
				break
			}
			s.buf = append(s.buf, r.data...)
			cause = s.processInput()

		case cmd := <-s.commands:
			cause = s.write(cmd)

		case cause = <-s.fail:

		case <-s.closing:
			cause = errClientClose
		}
	}

	if errors.Is(cause, errClientClose) || s.isClosing() {
		cause = nil
	}
	s.shutdown(cause)
}

// errClientClose stops the loop when Close was called.
var errClientClose = errors.New("closed by client")

func (s *Session) write(cmd outbound) error {
	s.wbuf = codec.AppendFrame(s.wbuf[:0], cmd.frame)
	if _, err := s.rw.Write(s.wbuf); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	s.outstanding++
	s.sentAt = time.Now()
	s.logFrame(log.DirectionOut, s.wbuf)
	s.logMessage(log.DirectionOut, log.MessageTypeCommand, cmd.keyword, cmd.frame, nil)
	s.logger.Debug("sent command", "command", cmd.frame.String())
	return nil
}

// processInput decodes every complete line in the receive buffer.
func (s *Session) processInput() error {
	for {
		frame, n, err := s.codec.Decode(s.buf)
		s.buf = s.buf[n:]

		switch {
		case errors.Is(err, codec.ErrFrameTooLong):
			s.logger.Warn("skipping oversized line", "max_length", s.codec.MaxLength())
			s.logError(log.LayerTransport, err, "decode")
			continue
		case err != nil:
			return err
		case frame == nil:
			if len(s.buf) == 0 {
				s.buf = nil
			}
			return nil
		}

		s.logFrame(log.DirectionIn, codec.AppendFrame(nil, frame))
		if err := s.dispatch(frame); err != nil {
			return err
		}
	}
}

// dispatch routes one inbound frame to the event bus or the waiting caller.
func (s *Session) dispatch(frame codec.Frame) error {
	switch wire.Classify(frame) {
	case wire.ClassEvent:
		s.publish(frame)
		return nil
	default:
		return s.deliver(frame)
	}
}

func (s *Session) publish(frame codec.Frame) {
	s.logMessage(log.DirectionIn, log.MessageTypeNotification, frame.Tag(), frame, nil)
	event, err := wire.ParseEvent(frame)
	if err != nil {
		s.logger.Warn("dropping unparsable event", "frame", frame.String(), "error", err)
		s.logError(log.LayerWire, err, "parse event")
		return
	}
	s.bus.Publish(event)
}

// deliver hands a response to the caller that sent the oldest command.
func (s *Session) deliver(frame codec.Frame) error {
	if s.outstanding == 0 {
		s.logger.Warn("dropping unsolicited response", "frame", frame.String())
		s.logMessage(log.DirectionIn, log.MessageTypeUnsolicited, frame.Tag(), frame, nil)
		return nil
	}

	s.outstanding--
	latency := time.Since(s.sentAt)
	s.logMessage(log.DirectionIn, log.MessageTypeResponse, frame.Tag(), frame, &latency)

	select {
	case s.responses <- frame:
		return nil
	case cause := <-s.fail:
		return cause
	case <-s.closing:
		return errClientClose
	}
}

// shutdown runs once, on the loop goroutine, when the session ends.
func (s *Session) shutdown(cause error) {
	s.err = &ClosedError{Cause: cause}
	close(s.stopped)
	s.closeTransport()
	s.bus.Close()

	reason := ""
	if cause != nil {
		reason = cause.Error()
		s.logger.Warn("session terminated", "error", cause)
		s.logError(log.LayerSession, cause, "session")
	} else {
		s.logger.Debug("session closed")
	}
	s.logState(StateOpen.String(), StateClosed.String(), reason)
	close(s.done)
}

func (s *Session) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		RemoteAddr:   s.remote,
	}
}

func (s *Session) logFrame(dir log.Direction, line []byte) {
	e := s.event(dir, log.LayerTransport, log.CategoryMessage)
	e.Frame = log.NewFrameEvent(line)
	s.plog.Log(e)
}

func (s *Session) logMessage(dir log.Direction, typ log.MessageType, keyword string, frame codec.Frame, latency *time.Duration) {
	e := s.event(dir, log.LayerWire, log.CategoryMessage)
	e.Message = &log.MessageEvent{
		Type:    typ,
		Keyword: keyword,
		Fields:  append([]string(nil), frame...),
		Latency: latency,
	}
	s.plog.Log(e)
}

func (s *Session) logState(from, to, reason string) {
	e := s.event(log.DirectionIn, log.LayerSession, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySession,
		OldState: from,
		NewState: to,
		Reason:   reason,
	}
	s.plog.Log(e)
}

func (s *Session) logError(layer log.Layer, err error, op string) {
	e := s.event(log.DirectionIn, layer, log.CategoryError)
	e.Error = &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: op}
	s.plog.Log(e)
}
