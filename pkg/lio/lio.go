// Package lio wraps single relays and input lines of a controller.
package lio

import (
	"context"
	"time"

	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// Relay addresses one relay through a gateway.
type Relay struct {
	gw gateway.Gateway
	id uint32
}

// NewRelay returns a handle for relay id.
func NewRelay(gw gateway.Gateway, id uint32) *Relay {
	return &Relay{gw: gw, id: id}
}

// ID returns the relay number.
func (r *Relay) ID() uint32 {
	return r.id
}

// Status reports whether the relay is energized.
func (r *Relay) Status(ctx context.Context) (bool, error) {
	return r.gw.RelayStatus(ctx, r.id)
}

// On energizes the relay.
func (r *Relay) On(ctx context.Context) error {
	return r.gw.Relay(ctx, r.id, wire.RelayOn, nil)
}

// Off releases the relay.
func (r *Relay) Off(ctx context.Context) error {
	return r.gw.Relay(ctx, r.id, wire.RelayOff, nil)
}

// Toggle flips the relay.
func (r *Relay) Toggle(ctx context.Context) error {
	return r.gw.Relay(ctx, r.id, wire.RelayToggle, nil)
}

// Click energizes the relay and lets the device release it after delay.
func (r *Relay) Click(ctx context.Context, delay wire.ClickDelay) error {
	return r.gw.Relay(ctx, r.id, wire.RelayOn, &delay)
}

// Pulse switches the relay on, waits d and switches it off again, timing
// the pulse on the client. If ctx ends during the wait the relay is still
// switched off, with a fresh context, before the context error is returned.
func (r *Relay) Pulse(ctx context.Context, d time.Duration) error {
	if err := r.On(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return r.Off(ctx)
	case <-ctx.Done():
		offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = r.Off(offCtx)
		return ctx.Err()
	}
}

// InputLine follows the level changes of one input line.
type InputLine struct {
	id  uint32
	sub *subscription.Subscription[wire.Event]
}

// NewInputLine subscribes to gw's events. Changes are only seen from this
// call on, and only after input events were enabled on the device.
func NewInputLine(gw gateway.Gateway, id uint32) *InputLine {
	return &InputLine{id: id, sub: gw.Subscribe()}
}

// ID returns the line number.
func (l *InputLine) ID() uint32 {
	return l.id
}

// WaitSignal returns the level of the next change on this line. Events for
// other lines are skipped. It returns subscription.ErrClosed when the
// session ends.
func (l *InputLine) WaitSignal(ctx context.Context) (wire.Signal, error) {
	for {
		ev, err := l.sub.Next(ctx)
		if err != nil {
			return wire.Low, err
		}
		if in, ok := ev.(wire.InputChange); ok && in.Line == l.id {
			return in.Signal, nil
		}
	}
}

// Missed returns how many events were lost because the line was not read
// fast enough.
func (l *InputLine) Missed() uint64 {
	return l.sub.Missed()
}

// Close stops following the line.
func (l *InputLine) Close() {
	l.sub.Close()
}
