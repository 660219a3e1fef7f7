package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/laurent-protocol/laurent-go/internal/config"
	"github.com/laurent-protocol/laurent-go/internal/logging"
	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/log"
	"github.com/laurent-protocol/laurent-go/pkg/session"
	"github.com/laurent-protocol/laurent-go/pkg/transport"
)

// globalFlags are the persistent root flags.
type globalFlags struct {
	configPath  string
	address     string
	password    string
	timeout     time.Duration
	events      []string
	protocolLog string
	logLevel    string
	logFormat   string
	tlsCA       string
	tlsServer   string
	tlsInsecure bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	pf.StringVarP(&f.address, "address", "a", "", "controller address, host[:port]")
	pf.StringVarP(&f.password, "password", "p", "", "password sent with $KE,PSW after connecting")
	pf.DurationVar(&f.timeout, "timeout", 0, "command timeout (default 10s)")
	pf.StringSliceVar(&f.events, "events", nil, "event kinds to enable after connecting (EIN, TIME, ...)")
	pf.StringVar(&f.protocolLog, "protocol-log", "", "write a protocol capture to this file")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&f.tlsCA, "tls-ca", "", "connect with TLS, trusting this CA bundle")
	pf.StringVar(&f.tlsServer, "tls-server-name", "", "connect with TLS, verifying this server name")
	pf.BoolVar(&f.tlsInsecure, "tls-insecure", false, "connect with TLS without verifying the server")
}

// load builds the effective config: file, then environment, then flags.
func (f *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("address") {
		cfg.Address = f.address
	}
	if changed("password") {
		cfg.Password = f.password
	}
	if changed("timeout") {
		cfg.CommandTimeout = f.timeout
	}
	if changed("events") {
		cfg.Events = f.events
	}
	if changed("protocol-log") {
		cfg.ProtocolLog = f.protocolLog
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("tls-ca") || changed("tls-server-name") || changed("tls-insecure") {
		if cfg.TLS == nil {
			cfg.TLS = &transport.TLSConfig{}
		}
		if f.tlsCA != "" {
			cfg.TLS.CAFile = f.tlsCA
		}
		if f.tlsServer != "" {
			cfg.TLS.ServerName = f.tlsServer
		}
		cfg.TLS.InsecureSkipVerify = f.tlsInsecure
	}
	return cfg, nil
}

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	out    io.Writer
	logger *slog.Logger
	plog   log.Logger
	file   *log.FileLogger
}

func newApp(cfg config.Config, out, errOut io.Writer) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, errOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, out: out, logger: logger, plog: log.NoopLogger{}}

	var sinks []log.Logger
	if cfg.ProtocolLog != "" {
		file, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		a.file = file
		sinks = append(sinks, file)
		logger.Debug("protocol capture enabled", "path", file.Path())
	}
	// At debug level every line is traced to the console as well.
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger.With("component", "wire")))
	}
	if multi := log.NewMultiLogger(sinks...); multi.Len() > 0 {
		a.plog = multi
	}
	return a, nil
}

func (a *app) close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	if n := a.file.Errors(); n > 0 {
		a.logger.Warn("protocol capture dropped events", "count", n)
	}
	return err
}

// dial connects to the configured controller.
func (a *app) dial(ctx context.Context) (*gateway.StreamGateway, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	dc, err := a.cfg.DialConfig()
	if err != nil {
		return nil, err
	}
	conn, err := transport.Dial(ctx, dc)
	if err != nil {
		return nil, err
	}

	opts := append(a.cfg.SessionOptions(),
		session.WithLogger(a.logger),
		session.WithProtocolLogger(a.plog),
	)
	gw := gateway.Connect(conn, opts...)
	a.logger.Debug("connected", "remote", gw.Session().RemoteAddr(), "session", gw.Session().ID())
	return gw, nil
}

// setup authorizes and enables the configured events.
func (a *app) setup(ctx context.Context, gw *gateway.StreamGateway) error {
	if a.cfg.Password != "" {
		if err := gw.Authorize(ctx, a.cfg.Password); err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
	}
	kinds, err := a.cfg.EventKinds()
	if err != nil {
		return err
	}
	for _, k := range kinds {
		if err := gw.ConfigureEvent(ctx, k, true); err != nil {
			return fmt.Errorf("enable %s events: %w", k, err)
		}
	}
	return nil
}

// open dials and runs setup.
func (a *app) open(ctx context.Context) (*gateway.StreamGateway, error) {
	gw, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.setup(ctx, gw); err != nil {
		return nil, errors.Join(err, gw.Close())
	}
	return gw, nil
}

// withGateway opens a gateway, runs fn and closes the gateway.
func (a *app) withGateway(ctx context.Context, fn func(*gateway.StreamGateway) error) error {
	gw, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()
	return fn(gw)
}
