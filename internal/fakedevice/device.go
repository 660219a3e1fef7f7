// Package fakedevice simulates a Laurent controller board for tests and
// demos. It speaks the KE line protocol over any byte stream.
package fakedevice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// Default board layout.
const (
	DefaultName     = "Laurent-2"
	DefaultPassword = "Laurent"
	DefaultRelays   = 4
	DefaultInputs   = 6
)

// Config describes the simulated board.
type Config struct {
	Name     string
	Password string
	Relays   int
	Inputs   int

	// Latency delays every reply.
	Latency time.Duration

	Logger *slog.Logger
}

// Device is a simulated board. One Device may serve many connections; they
// share relay, input and event settings, as on the real hardware.
type Device struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	relays  []bool
	inputs  []wire.Signal
	enabled map[wire.EventKind]bool
	conns   map[*conn]struct{}
	timers  []*time.Timer
	lines   []string

	wg sync.WaitGroup
}

// New creates a device; zero fields in cfg take the defaults.
func New(cfg Config) *Device {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.Relays <= 0 {
		cfg.Relays = DefaultRelays
	}
	if cfg.Inputs <= 0 {
		cfg.Inputs = DefaultInputs
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Device{
		cfg:     cfg,
		logger:  logger.With("device", cfg.Name),
		relays:  make([]bool, cfg.Relays),
		inputs:  make([]wire.Signal, cfg.Inputs),
		enabled: make(map[wire.EventKind]bool),
		conns:   make(map[*conn]struct{}),
	}
}

// Name returns the module name reported by INF.
func (d *Device) Name() string {
	return d.cfg.Name
}

// conn is one client connection.
type conn struct {
	rw io.ReadWriteCloser
	mu sync.Mutex
}

func (c *conn) writeFrame(f codec.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.rw.Write(codec.AppendFrame(nil, f))
	return err
}

// Serve handles one connection until it fails or ctx is done. It closes rw.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	c := &conn{rw: rw}
	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer func() {
		stop()
		rw.Close()
		d.mu.Lock()
		delete(d.conns, c)
		d.mu.Unlock()
	}()

	dec := codec.New()
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		n, err := rw.Read(chunk)
		buf = append(buf, chunk[:n]...)
		for {
			frame, used, derr := dec.Decode(buf)
			buf = buf[used:]
			if derr != nil {
				d.logger.Debug("bad line from client", "error", derr)
				if werr := c.writeFrame(codec.Frame{"#ERR"}); werr != nil {
					return werr
				}
				continue
			}
			if frame == nil {
				break
			}
			d.record(frame)
			if d.cfg.Latency > 0 {
				time.Sleep(d.cfg.Latency)
			}
			if werr := c.writeFrame(d.handle(frame)); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// ListenAndServe accepts connections on ln until ctx is done, then closes
// the listener and waits for every connection to finish.
func (d *Device) ListenAndServe(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer d.wg.Wait()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.logger.Debug("client connected", "remote", nc.RemoteAddr().String())
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.Serve(ctx, nc); err != nil {
				d.logger.Debug("connection ended", "error", err)
			}
		}()
	}
}

// DropConnections closes every open connection, as a power cycle would.
func (d *Device) DropConnections() {
	d.mu.Lock()
	conns := make([]*conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		c.rw.Close()
	}
}

// Connections returns the number of open connections.
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Received returns every line received so far, across connections.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

// Relay reports the state of relay id (1-based).
func (d *Device) Relay(id uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == 0 || int(id) > len(d.relays) {
		return false
	}
	return d.relays[id-1]
}

// SetInput changes input line id (1-based) and reports the change to every
// connection when input events are enabled.
func (d *Device) SetInput(id uint32, sig wire.Signal) {
	d.mu.Lock()
	if id == 0 || int(id) > len(d.inputs) {
		d.mu.Unlock()
		return
	}
	changed := d.inputs[id-1] != sig
	d.inputs[id-1] = sig
	d.mu.Unlock()

	if changed {
		d.emit(wire.InputChange{Line: id, Signal: sig})
	}
}

// Tick reports uptime to every connection when time events are enabled.
func (d *Device) Tick(seconds uint32) {
	d.emit(wire.TimeTick{Seconds: seconds})
}

// Close stops pending relay timers and drops connections.
func (d *Device) Close() {
	d.mu.Lock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	d.mu.Unlock()
	d.DropConnections()
}

func (d *Device) emit(ev wire.Event) {
	d.mu.Lock()
	if !d.enabled[ev.Kind()] {
		d.mu.Unlock()
		return
	}
	conns := make([]*conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		if err := c.writeFrame(ev.Frame()); err != nil {
			d.logger.Debug("event write failed", "error", err)
		}
	}
}

func (d *Device) record(f codec.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, f.String())
}

// handle computes the reply to one command line.
func (d *Device) handle(f codec.Frame) codec.Frame {
	if f.Tag() != wire.Selector {
		return codec.Frame{"#ERR"}
	}
	args := f.Args()
	if len(args) == 0 {
		return codec.Frame{"#OK"}
	}

	switch args[0] {
	case wire.KeywordInfo:
		return codec.Frame{"#INF", d.cfg.Name}
	case wire.KeywordPassword:
		return d.handlePassword(args[1:])
	case wire.KeywordMessage:
		return d.handleMessage(args[1:])
	case wire.KeywordRelay:
		return d.handleRelay(args[1:])
	case wire.KeywordRelayStatus:
		return d.handleRead(wire.KeywordRelayStatus, args[1:])
	case wire.KeywordLineSignal:
		return d.handleRead(wire.KeywordLineSignal, args[1:])
	default:
		return codec.Frame{"#ERR"}
	}
}

func (d *Device) handlePassword(args []string) codec.Frame {
	if len(args) != 2 || args[0] != "SET" {
		return codec.Frame{"#ERR"}
	}
	if args[1] != d.cfg.Password {
		return codec.Frame{"#PSW", "SET", "ERR"}
	}
	return codec.Frame{"#PSW", "SET", "OK"}
}

func (d *Device) handleMessage(args []string) codec.Frame {
	if len(args) != 4 || args[0] != "S" || args[2] != "SET" {
		return codec.Frame{"#MSG", "ERR"}
	}
	kind, err := wire.ParseEventKind(args[1])
	if err != nil {
		return codec.Frame{"#MSG", "ERR"}
	}
	var on bool
	switch args[3] {
	case "ON":
		on = true
	case "OFF":
	default:
		return codec.Frame{"#MSG", "S", args[1], "SET", "ERR"}
	}

	d.mu.Lock()
	d.enabled[kind] = on
	d.mu.Unlock()
	return codec.Frame{"#MSG", "S", args[1], "SET", "OK"}
}

func (d *Device) handleRelay(args []string) codec.Frame {
	fail := codec.Frame{"#REL", "ERR"}
	if len(args) < 2 || len(args) > 3 {
		return fail
	}
	id, ok := d.index(args[0], len(d.relays))
	if !ok {
		return fail
	}
	action, err := wire.ParseRelayAction(args[1])
	if err != nil {
		return fail
	}
	var delay *wire.ClickDelay
	if len(args) == 3 {
		cd, err := wire.ParseClickDelay(args[2])
		if err != nil {
			return fail
		}
		delay = &cd
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch action {
	case wire.RelayOn:
		d.relays[id] = true
	case wire.RelayOff:
		d.relays[id] = false
	case wire.RelayToggle:
		d.relays[id] = !d.relays[id]
	}
	if delay != nil && action == wire.RelayOn {
		d.timers = append(d.timers, time.AfterFunc(delay.Duration(), func() {
			d.mu.Lock()
			d.relays[id] = false
			d.mu.Unlock()
		}))
	}
	return codec.Frame{"#REL", "OK"}
}

func (d *Device) handleRead(keyword string, args []string) codec.Frame {
	if len(args) != 1 {
		return codec.Frame{"#ERR"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var sig wire.Signal
	switch keyword {
	case wire.KeywordRelayStatus:
		id, ok := d.index(args[0], len(d.relays))
		if !ok {
			return codec.Frame{"#ERR"}
		}
		sig = wire.SignalFromBool(d.relays[id])
	default:
		id, ok := d.index(args[0], len(d.inputs))
		if !ok {
			return codec.Frame{"#ERR"}
		}
		sig = d.inputs[id]
	}
	return codec.Frame{"#" + keyword, args[0], sig.Wire()}
}

// index converts a 1-based wire id to a slice index.
func (d *Device) index(s string, n int) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}
