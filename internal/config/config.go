// Package config loads laurentctl settings from YAML or TOML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/laurent-protocol/laurent-go/internal/logging"
	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/connection"
	"github.com/laurent-protocol/laurent-go/pkg/discovery"
	"github.com/laurent-protocol/laurent-go/pkg/session"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/transport"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LAURENT_"

var (
	// ErrUnsupportedFormat is returned for config files that are neither
	// YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid config")
)

// Config holds everything needed to reach and drive one controller.
type Config struct {
	Address  string               `yaml:"address" toml:"address"`
	Password string               `yaml:"password" toml:"password"`
	TLS      *transport.TLSConfig `yaml:"tls" toml:"tls"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" toml:"command_timeout"`
	MaxLineLength  int           `yaml:"max_line_length" toml:"max_line_length"`
	EventHistory   int           `yaml:"event_history" toml:"event_history"`

	// Events lists event kinds (EIN, TIME, ...) to enable after connecting.
	Events []string `yaml:"events" toml:"events"`

	KeepAlive KeepAlive `yaml:"keepalive" toml:"keepalive"`
	Reconnect Reconnect `yaml:"reconnect" toml:"reconnect"`

	// ProtocolLog is a capture file path. Empty disables capture.
	ProtocolLog string `yaml:"protocol_log" toml:"protocol_log"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	Discovery Discovery `yaml:"discovery" toml:"discovery"`
}

// KeepAlive configures ping monitoring. A zero Interval disables it.
type KeepAlive struct {
	Interval  time.Duration `yaml:"interval" toml:"interval"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
	MaxMissed int           `yaml:"max_missed" toml:"max_missed"`
}

// Reconnect bounds the backoff between connection attempts.
type Reconnect struct {
	Initial time.Duration `yaml:"initial" toml:"initial"`
	Max     time.Duration `yaml:"max" toml:"max"`
}

// Discovery configures mDNS browsing.
type Discovery struct {
	Service   string        `yaml:"service" toml:"service"`
	Interface string        `yaml:"interface" toml:"interface"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ConnectTimeout: transport.DefaultConnectTimeout,
		CommandTimeout: session.DefaultTimeout,
		MaxLineLength:  codec.DefaultMaxLength,
		EventHistory:   subscription.DefaultHistory,
		KeepAlive: KeepAlive{
			Interval:  transport.DefaultPingInterval,
			Timeout:   transport.DefaultPingTimeout,
			MaxMissed: transport.DefaultMaxMissedPings,
		},
		Reconnect: Reconnect{
			Initial: connection.InitialBackoff,
			Max:     connection.MaxBackoff,
		},
		LogLevel:  "info",
		LogFormat: "text",
		Discovery: Discovery{
			Service: discovery.ServiceType,
			Timeout: discovery.DefaultBrowseTimeout,
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml and .yml use YAML, .toml uses TOML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LAURENT_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("ADDRESS", &c.Address)
	str("PASSWORD", &c.Password)
	str("PROTOCOL_LOG", &c.ProtocolLog)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v, ok := lookup(EnvPrefix + "EVENTS"); ok {
		c.Events = splitList(v)
	}

	return errors.Join(
		dur("CONNECT_TIMEOUT", &c.ConnectTimeout),
		dur("COMMAND_TIMEOUT", &c.CommandTimeout),
		dur("KEEPALIVE_INTERVAL", &c.KeepAlive.Interval),
		num("MAX_LINE_LENGTH", &c.MaxLineLength),
		num("EVENT_HISTORY", &c.EventHistory),
	)
}

// Validate checks the settings needed to connect.
func (c *Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if strings.ContainsAny(c.Password, codec.FieldSeparator+"\r\n") {
		errs = append(errs, errors.New("password contains a field separator or line break"))
	}
	if c.ConnectTimeout < 0 || c.CommandTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.MaxLineLength < 0 || c.EventHistory < 0 {
		errs = append(errs, errors.New("max_line_length and event_history must not be negative"))
	}
	if _, err := c.EventKinds(); err != nil {
		errs = append(errs, err)
	}
	if c.KeepAlive.Interval > 0 && c.KeepAlive.Timeout >= c.KeepAlive.Interval {
		errs = append(errs, errors.New("keepalive timeout must be shorter than the interval"))
	}
	if c.Reconnect.Max > 0 && c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, errors.New("reconnect max is below initial"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// EventKinds parses Events.
func (c *Config) EventKinds() ([]wire.EventKind, error) {
	kinds := make([]wire.EventKind, 0, len(c.Events))
	for _, name := range c.Events {
		k, err := wire.ParseEventKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// DialConfig builds the transport settings.
func (c *Config) DialConfig() (transport.DialConfig, error) {
	dc := transport.DialConfig{
		Address:        c.Address,
		ConnectTimeout: c.ConnectTimeout,
	}
	if c.TLS != nil {
		tlsConfig, err := transport.NewClientTLSConfig(c.TLS)
		if err != nil {
			return transport.DialConfig{}, err
		}
		dc.TLS = tlsConfig
	}
	return dc, nil
}

// SessionOptions returns the session settings carried by c.
func (c *Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithTimeout(c.CommandTimeout),
		session.WithMaxLineLength(c.MaxLineLength),
		session.WithEventHistory(c.EventHistory),
	}
}

// KeepAliveConfig returns nil when ping monitoring is off.
func (c *Config) KeepAliveConfig() *transport.KeepAliveConfig {
	if c.KeepAlive.Interval <= 0 {
		return nil
	}
	return &transport.KeepAliveConfig{
		PingInterval:   c.KeepAlive.Interval,
		PingTimeout:    c.KeepAlive.Timeout,
		MaxMissedPings: c.KeepAlive.MaxMissed,
	}
}

// BackoffConfig returns the reconnect settings.
func (c *Config) BackoffConfig() connection.BackoffConfig {
	return connection.BackoffConfig{
		Initial: c.Reconnect.Initial,
		Max:     c.Reconnect.Max,
	}
}

// BrowseConfig returns the discovery settings.
func (c *Config) BrowseConfig() discovery.BrowseConfig {
	return discovery.BrowseConfig{
		Service:   c.Discovery.Service,
		Interface: c.Discovery.Interface,
		Timeout:   c.Discovery.Timeout,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
