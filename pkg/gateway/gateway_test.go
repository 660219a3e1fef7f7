package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/laurent-protocol/laurent-go/internal/fakedevice"
	"github.com/laurent-protocol/laurent-go/pkg/session"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func connect(t *testing.T, cfg fakedevice.Config, opts ...session.Option) (*StreamGateway, *fakedevice.Device) {
	t.Helper()
	dev := fakedevice.New(cfg)
	client, server := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = dev.Serve(ctx, server)
	}()

	gw := Connect(client, opts...)
	t.Cleanup(func() {
		gw.Close()
		cancel()
		<-served
		dev.Close()
	})
	return gw, dev
}

func TestStreamGatewayCommands(t *testing.T) {
	gw, dev := connect(t, fakedevice.Config{Name: "Laurent-5G", Password: "pw"})
	ctx := context.Background()

	require.NoError(t, gw.Ping(ctx))

	name, err := gw.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Laurent-5G", name)

	assert.ErrorIs(t, gw.Authorize(ctx, "wrong"), wire.ErrAuth)
	require.NoError(t, gw.Authorize(ctx, "pw"))

	require.NoError(t, gw.Relay(ctx, 3, wire.RelayOn, nil))
	assert.True(t, dev.Relay(3))

	on, err := gw.RelayStatus(ctx, 3)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, gw.Relay(ctx, 3, wire.RelayToggle, nil))
	on, err = gw.RelayStatus(ctx, 3)
	require.NoError(t, err)
	assert.False(t, on)

	assert.ErrorIs(t, gw.Relay(ctx, 42, wire.RelayOn, nil), wire.ErrSyntax)

	dev.SetInput(2, wire.High)
	sig, err := gw.LineSignal(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, wire.High, sig)

	assert.Equal(t, []string{
		"$KE",
		"$KE,INF",
		"$KE,PSW,SET,wrong",
		"$KE,PSW,SET,pw",
		"$KE,REL,3,1",
		"$KE,RDR,3",
		"$KE,REL,3,2",
		"$KE,RDR,3",
		"$KE,REL,42,1",
		"$KE,RD,2",
	}, dev.Received())
}

func TestStreamGatewayEvents(t *testing.T) {
	gw, dev := connect(t, fakedevice.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := gw.Subscribe()
	defer sub.Close()

	require.NoError(t, gw.ConfigureEvent(ctx, wire.EventKindInput, true))

	go dev.SetInput(1, wire.High)
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InputChange{Line: 1, Signal: wire.High}, ev)

	go dev.SetInput(1, wire.Low)
	ev, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InputChange{Line: 1, Signal: wire.Low}, ev)
}

func TestStreamGatewayRejectsUnsafePassword(t *testing.T) {
	gw, dev := connect(t, fakedevice.Config{})

	err := gw.Authorize(context.Background(), "a,b")
	assert.Error(t, err)
	assert.Empty(t, dev.Received(), "nothing may reach the wire")
}

func TestStreamGatewayLogsMismatchedResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	client, device := net.Pipe()
	gw := Connect(client, session.WithLogger(logger))
	defer func() {
		gw.Close()
		device.Close()
	}()

	errc := make(chan error, 1)
	go func() {
		_, err := gw.RelayStatus(context.Background(), 3)
		errc <- err
	}()

	line := make([]byte, 64)
	n, err := device.Read(line)
	require.NoError(t, err)
	assert.Equal(t, "$KE,RDR,3\r\n", string(line[:n]))
	_, err = device.Write([]byte("#RDR,1,1\r\n"))
	require.NoError(t, err)

	assert.ErrorIs(t, <-errc, wire.ErrUnexpectedMessage)
	assert.Contains(t, buf.String(), "response does not match command")
}

func TestStreamGatewayClose(t *testing.T) {
	gw, _ := connect(t, fakedevice.Config{})

	require.NoError(t, gw.Close())
	select {
	case <-gw.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	assert.ErrorIs(t, gw.Ping(context.Background()), session.ErrClosed)
	assert.ErrorIs(t, gw.Err(), session.ErrClosed)
	assert.NotNil(t, gw.Session())
}
