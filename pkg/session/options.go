package session

import (
	"log/slog"
	"time"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/log"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
)

// Default settings.
const (
	// DefaultTimeout bounds a single exchange.
	DefaultTimeout = 10 * time.Second

	// DefaultReadBufferSize is the size of each transport read.
	DefaultReadBufferSize = 4096
)

// Config holds session settings. Use the With* options to change them.
type Config struct {
	Logger         *slog.Logger
	ProtocolLogger log.Logger
	MaxLineLength  int
	EventHistory   int
	Timeout        time.Duration
	ConnectionID   string
	ReadBufferSize int
	RemoteAddr     string
}

// DefaultConfig returns the settings used when no option is given.
func DefaultConfig() Config {
	return Config{
		MaxLineLength:  codec.DefaultMaxLength,
		EventHistory:   subscription.DefaultHistory,
		Timeout:        DefaultTimeout,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

// Option changes a session setting.
type Option func(*Config)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithProtocolLogger enables protocol capture.
func WithProtocolLogger(logger log.Logger) Option {
	return func(c *Config) { c.ProtocolLogger = logger }
}

// WithMaxLineLength sets the longest accepted inbound line.
func WithMaxLineLength(n int) Option {
	return func(c *Config) { c.MaxLineLength = n }
}

// WithEventHistory sets how many events each subscriber buffers.
func WithEventHistory(n int) Option {
	return func(c *Config) { c.EventHistory = n }
}

// WithTimeout bounds each exchange on top of the caller's context.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithConnectionID overrides the generated connection ID.
func WithConnectionID(id string) Option {
	return func(c *Config) { c.ConnectionID = id }
}

// WithReadBufferSize sets the size of each transport read.
func WithReadBufferSize(n int) Option {
	return func(c *Config) { c.ReadBufferSize = n }
}

// WithRemoteAddr labels capture events with the device address. It is
// filled in automatically for streams that have a RemoteAddr method.
func WithRemoteAddr(addr string) Option {
	return func(c *Config) { c.RemoteAddr = addr }
}
