package lio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/laurent-protocol/laurent-go/pkg/gateway/mocks"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

func TestRelayCommands(t *testing.T) {
	gw := mocks.NewGateway(t)
	ctx := context.Background()
	r := NewRelay(gw, 4)

	gw.On("Relay", ctx, uint32(4), wire.RelayOn, (*wire.ClickDelay)(nil)).Return(nil).Once()
	gw.On("Relay", ctx, uint32(4), wire.RelayOff, (*wire.ClickDelay)(nil)).Return(nil).Once()
	gw.On("Relay", ctx, uint32(4), wire.RelayToggle, (*wire.ClickDelay)(nil)).Return(nil).Once()
	gw.On("RelayStatus", ctx, uint32(4)).Return(true, nil).Once()

	require.NoError(t, r.On(ctx))
	require.NoError(t, r.Off(ctx))
	require.NoError(t, r.Toggle(ctx))

	on, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, uint32(4), r.ID())
}

func TestRelayClick(t *testing.T) {
	gw := mocks.NewGateway(t)
	ctx := context.Background()
	r := NewRelay(gw, 1)

	gw.On("Relay", ctx, uint32(1), wire.RelayOn, mock.MatchedBy(func(d *wire.ClickDelay) bool {
		return d != nil && d.Wire() == ".5"
	})).Return(nil).Once()

	require.NoError(t, r.Click(ctx, wire.Millis100(5)))
}

func TestRelayPulse(t *testing.T) {
	gw := mocks.NewGateway(t)
	ctx := context.Background()
	r := NewRelay(gw, 2)

	var onAt, offAt time.Time
	gw.On("Relay", ctx, uint32(2), wire.RelayOn, (*wire.ClickDelay)(nil)).
		Run(func(mock.Arguments) { onAt = time.Now() }).Return(nil).Once()
	gw.On("Relay", ctx, uint32(2), wire.RelayOff, (*wire.ClickDelay)(nil)).
		Run(func(mock.Arguments) { offAt = time.Now() }).Return(nil).Once()

	require.NoError(t, r.Pulse(ctx, 30*time.Millisecond))
	assert.GreaterOrEqual(t, offAt.Sub(onAt), 30*time.Millisecond)
}

func TestRelayPulseCancelledStillSwitchesOff(t *testing.T) {
	gw := mocks.NewGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRelay(gw, 2)

	gw.On("Relay", mock.Anything, uint32(2), wire.RelayOn, (*wire.ClickDelay)(nil)).
		Run(func(mock.Arguments) { cancel() }).Return(nil).Once()
	gw.On("Relay", mock.Anything, uint32(2), wire.RelayOff, (*wire.ClickDelay)(nil)).Return(nil).Once()

	err := r.Pulse(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelayPulseOnFailure(t *testing.T) {
	gw := mocks.NewGateway(t)
	ctx := context.Background()
	boom := errors.New("boom")

	gw.On("Relay", ctx, uint32(1), wire.RelayOn, (*wire.ClickDelay)(nil)).Return(boom).Once()

	assert.ErrorIs(t, NewRelay(gw, 1).Pulse(ctx, time.Millisecond), boom)
}

func TestInputLineWaitSignal(t *testing.T) {
	bus := subscription.NewBus[wire.Event](8)
	gw := mocks.NewGateway(t)
	gw.On("Subscribe").Return(bus.Subscribe()).Once()

	line := NewInputLine(gw, 3)
	defer line.Close()

	bus.Publish(wire.TimeTick{Seconds: 10})
	bus.Publish(wire.InputChange{Line: 1, Signal: wire.High})
	bus.Publish(wire.InputChange{Line: 3, Signal: wire.High})
	bus.Publish(wire.InputChange{Line: 3, Signal: wire.Low})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sig, err := line.WaitSignal(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.High, sig)

	sig, err = line.WaitSignal(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.Low, sig)
	assert.Zero(t, line.Missed())
	assert.Equal(t, uint32(3), line.ID())
}

func TestInputLineEndsWithSession(t *testing.T) {
	bus := subscription.NewBus[wire.Event](8)
	gw := mocks.NewGateway(t)
	gw.On("Subscribe").Return(bus.Subscribe()).Once()

	line := NewInputLine(gw, 1)
	bus.Close()

	_, err := line.WaitSignal(context.Background())
	assert.ErrorIs(t, err, subscription.ErrClosed)
}
