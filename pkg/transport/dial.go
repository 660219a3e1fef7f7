package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Dial defaults.
const (
	// DefaultPort is the KE command port of Laurent controllers.
	DefaultPort = 2424

	// DefaultConnectTimeout bounds connection setup.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultKeepAlivePeriod is the TCP keep-alive probe period.
	DefaultKeepAlivePeriod = 15 * time.Second
)

// DialConfig configures a connection to a controller.
type DialConfig struct {
	// Address is host or host:port. The port defaults to DefaultPort.
	Address string

	// ConnectTimeout applies when ctx has no deadline (default: 5s).
	ConnectTimeout time.Duration

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// KeepAlivePeriod is the TCP keep-alive period. Negative disables it.
	KeepAlivePeriod time.Duration
}

// Addr returns the dial address with the default port filled in.
func (c DialConfig) Addr() string {
	return WithDefaultPort(c.Address)
}

// WithDefaultPort appends DefaultPort to addr when it carries no port.
func WithDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, fmt.Sprint(DefaultPort))
}

// Dial connects to the controller described by cfg.
func Dial(ctx context.Context, cfg DialConfig) (net.Conn, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("transport: address is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.KeepAlivePeriod == 0 {
		cfg.KeepAlivePeriod = DefaultKeepAlivePeriod
	}

	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	addr := cfg.Addr()
	dialer := &net.Dialer{KeepAlive: cfg.KeepAlivePeriod}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if cfg.TLS == nil {
		return conn, nil
	}

	tlsConf := cfg.TLS.Clone()
	if tlsConf.ServerName == "" && !tlsConf.InsecureSkipVerify {
		host, _, _ := net.SplitHostPort(addr)
		tlsConf.ServerName = host
	}
	tlsConn := tls.Client(conn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}
