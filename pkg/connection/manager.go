package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/log"
	"github.com/laurent-protocol/laurent-go/pkg/transport"
)

// Connection errors.
var (
	ErrManagerClosed  = errors.New("connection manager closed")
	ErrAlreadyRunning = errors.New("connection manager already running")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates the first connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates the connection was lost and is being
	// re-established.
	StateReconnecting

	// StateClosed indicates the connection manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc opens a new gateway.
type ConnectFunc func(ctx context.Context) (*gateway.StreamGateway, error)

// SetupFunc prepares a fresh gateway, e.g. authorizes and enables events.
type SetupFunc func(ctx context.Context, gw *gateway.StreamGateway) error

// Config configures a Manager.
type Config struct {
	Backoff BackoffConfig

	// KeepAlive enables ping monitoring when non-nil.
	KeepAlive *transport.KeepAliveConfig

	// Setup runs after every successful connect.
	Setup SetupFunc

	Logger         *slog.Logger
	ProtocolLogger log.Logger
}

// Manager keeps one gateway connected, reconnecting with backoff.
type Manager struct {
	connect ConnectFunc
	cfg     Config
	backoff *Backoff
	logger  *slog.Logger
	plog    log.Logger

	mu      sync.Mutex
	state   State
	gw      *gateway.StreamGateway
	changed chan struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool

	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration, err error)
}

// NewManager creates a manager. Nothing happens until Run is called.
func NewManager(connect ConnectFunc, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &Manager{
		connect: connect,
		cfg:     cfg,
		backoff: NewBackoffWithConfig(cfg.Backoff),
		logger:  logger,
		plog:    plog,
		changed: make(chan struct{}),
	}
}

// OnStateChange sets a callback for state transitions. It runs on the Run
// goroutine.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnReconnecting sets a callback invoked before each backoff wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Gateway returns the connected gateway, or nil.
func (m *Manager) Gateway() *gateway.StreamGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gw
}

// BackoffAttempts returns the failed attempts since the last success.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

// WaitConnected blocks until a gateway is connected, ctx ends or the
// manager is closed.
func (m *Manager) WaitConnected(ctx context.Context) (*gateway.StreamGateway, error) {
	for {
		m.mu.Lock()
		gw, state, changed := m.gw, m.state, m.changed
		m.mu.Unlock()

		if gw != nil && state == StateConnected {
			return gw, nil
		}
		if state == StateClosed {
			return nil, ErrManagerClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Run connects and keeps reconnecting until ctx ends or Close is called.
// It returns nil after Close and the context error otherwise.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	defer close(done)
	defer m.cancel()

	next := StateConnecting
	for {
		m.setState(next, nil)
		gw, err := m.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return m.finish(ctx)
			}
			delay := m.backoff.Next()
			m.logger.Warn("connect failed", "attempt", m.backoff.Attempts(), "retry_in", delay, "error", err)
			m.notifyReconnecting(m.backoff.Attempts(), delay, err)
			if !sleep(ctx, delay) {
				return m.finish(ctx)
			}
			continue
		}

		m.backoff.Reset()
		m.mu.Lock()
		m.gw = gw
		m.mu.Unlock()
		m.setState(StateConnected, nil)

		lost := m.watch(ctx, gw)

		m.mu.Lock()
		m.gw = nil
		m.mu.Unlock()

		if ctx.Err() != nil {
			return m.finish(ctx)
		}
		m.logger.Warn("connection lost", "error", lost)
		m.setState(StateReconnecting, lost)
		next = StateReconnecting
	}
}

// Close stops Run, closes the current gateway and waits for Run to return.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel, done, running := m.cancel, m.done, m.running
	m.mu.Unlock()

	if running {
		cancel()
		<-done
	} else {
		m.setState(StateClosed, nil)
	}
	return nil
}

// open connects and runs setup.
func (m *Manager) open(ctx context.Context) (*gateway.StreamGateway, error) {
	gw, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	if m.cfg.Setup != nil {
		if err := m.cfg.Setup(ctx, gw); err != nil {
			gw.Close()
			return nil, err
		}
	}
	return gw, nil
}

// watch blocks until the session ends or ctx is done, and returns why the
// session ended.
func (m *Manager) watch(ctx context.Context, gw *gateway.StreamGateway) error {
	if m.cfg.KeepAlive != nil {
		ka := transport.NewKeepAlive(*m.cfg.KeepAlive, gw, func() {
			m.logger.Warn("device stopped answering pings")
			gw.Close()
		})
		ka.Start(ctx)
		defer ka.Stop()
	}

	select {
	case <-gw.Done():
		return gw.Err()
	case <-ctx.Done():
		gw.Close()
		return ctx.Err()
	}
}

func (m *Manager) finish(ctx context.Context) error {
	m.setState(StateClosed, nil)

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil
	}
	return ctx.Err()
}

func (m *Manager) setState(s State, cause error) {
	m.mu.Lock()
	old := m.state
	if old == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	close(m.changed)
	m.changed = make(chan struct{})
	cb := m.onStateChange
	m.mu.Unlock()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
	m.logger.Debug("connection state", "from", old.String(), "to", s.String())

	if cb != nil {
		cb(old, s)
	}
}

func (m *Manager) notifyReconnecting(attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	cb := m.onReconnecting
	m.mu.Unlock()
	if cb != nil {
		cb(attempt, delay, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
