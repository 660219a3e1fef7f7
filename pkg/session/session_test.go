package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/laurent-protocol/laurent-go/pkg/codec"
	"github.com/laurent-protocol/laurent-go/pkg/log"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// peer is the device end of a net.Pipe.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (p *peer) readLine() string {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := p.r.ReadString('\n')
	require.NoError(p.t, err)
	return strings.TrimSuffix(line, "\r\n")
}

func (p *peer) write(s string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(s))
	require.NoError(p.t, err)
}

type recorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) messages(typ log.MessageType) []log.MessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.MessageEvent
	for _, e := range r.events {
		if e.Message != nil && e.Message.Type == typ {
			out = append(out, *e.Message)
		}
	}
	return out
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *peer) {
	t.Helper()
	client, device := net.Pipe()
	s := New(client, opts...)
	t.Cleanup(func() {
		s.Close()
		device.Close()
	})
	return s, &peer{t: t, conn: device, r: bufio.NewReader(device)}
}

type result struct {
	frame codec.Frame
	err   error
}

func exchangeAsync(ctx context.Context, s *Session, cmd codec.Frame) <-chan result {
	out := make(chan result, 1)
	go func() {
		f, err := s.Exchange(ctx, cmd)
		out <- result{f, err}
	}()
	return out
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not complete")
		return result{}
	}
}

func TestExchangeRoundTrip(t *testing.T) {
	s, dev := newTestSession(t)

	res := exchangeAsync(context.Background(), s, wire.Info().Frame())
	assert.Equal(t, "$KE,INF", dev.readLine())
	dev.write("#INF,Laurent-2\r\n")

	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, codec.Frame{"#INF", "Laurent-2"}, r.frame)
	assert.Equal(t, StateOpen, s.State())
	assert.NoError(t, s.Err())
	assert.NotEmpty(t, s.ID())
}

func TestConcurrentExchangesSerialize(t *testing.T) {
	s, dev := newTestSession(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"1", "2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Exchange(context.Background(), codec.Frame{"$KE", "RD", id})
			if err == nil && resp[1] != id {
				err = errors.New("response for line " + resp[1] + " delivered to line " + id)
			}
			errs <- err
		}()
	}

	first := dev.readLine()

	// Nothing else may be written before the first response is consumed.
	require.NoError(t, dev.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err := dev.r.ReadString('\n')
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	dev.write("#RD," + strings.TrimPrefix(first, "$KE,RD,") + ",1\r\n")
	second := dev.readLine()
	assert.NotEqual(t, first, second)
	dev.write("#RD," + strings.TrimPrefix(second, "$KE,RD,") + ",0\r\n")

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestEventsDoNotDisturbResponses(t *testing.T) {
	s, dev := newTestSession(t)
	sub := s.Subscribe()
	defer sub.Close()

	res := exchangeAsync(context.Background(), s, wire.RelayStatus(3).Frame())
	assert.Equal(t, "$KE,RDR,3", dev.readLine())
	dev.write("#M,EIN,2,1\r\n#RDR,3,1\r\n")

	r := await(t, res)
	require.NoError(t, r.err)
	on, err := wire.ParseRelayStatus(r.frame, 3)
	require.NoError(t, err)
	assert.True(t, on)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InputChange{Line: 2, Signal: wire.High}, ev)
}

func TestEventsArriveInOrder(t *testing.T) {
	s, dev := newTestSession(t)
	a := s.Subscribe()
	b := s.Subscribe()

	dev.write("#M,EIN,1,1\r\n#M,EIN,1,0\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, sub := range []*subscription.Subscription[wire.Event]{a, b} {
		first, err := sub.Next(ctx)
		require.NoError(t, err)
		second, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, wire.InputChange{Line: 1, Signal: wire.High}, first)
		assert.Equal(t, wire.InputChange{Line: 1, Signal: wire.Low}, second)
	}
}

func TestUnparsableEventIsDropped(t *testing.T) {
	s, dev := newTestSession(t)
	sub := s.Subscribe()

	dev.write("#M,PWM,1\r\n#M,TIME,60\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.TimeTick{Seconds: 60}, ev)
	assert.NoError(t, s.Err())
}

func TestUnsolicitedResponseIsDropped(t *testing.T) {
	rec := &recorder{}
	s, dev := newTestSession(t, WithProtocolLogger(rec))

	dev.write("#OK\r\n")
	require.Eventually(t, func() bool {
		return len(rec.messages(log.MessageTypeUnsolicited)) == 1
	}, time.Second, 5*time.Millisecond)

	res := exchangeAsync(context.Background(), s, wire.LineSignal(4).Frame())
	assert.Equal(t, "$KE,RD,4", dev.readLine())
	dev.write("#RD,4,1\r\n")

	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, codec.Frame{"#RD", "4", "1"}, r.frame)
}

func TestAbandonedExchangeResponseIsDrained(t *testing.T) {
	s, dev := newTestSession(t, WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := exchangeAsync(ctx, s, wire.Ping().Frame())
	assert.Equal(t, "$KE", dev.readLine())

	r := await(t, res)
	require.ErrorIs(t, r.err, context.DeadlineExceeded)

	// The late answer to the ping must not reach the next caller.
	dev.write("#OK\r\n")

	res = exchangeAsync(context.Background(), s, wire.RelayStatus(3).Frame())
	assert.Equal(t, "$KE,RDR,3", dev.readLine())
	dev.write("#RDR,3,1\r\n")

	r = await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, codec.Frame{"#RDR", "3", "1"}, r.frame)
}

func TestSilentDeviceClosesSession(t *testing.T) {
	s, dev := newTestSession(t, WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := exchangeAsync(ctx, s, wire.Ping().Frame())
	assert.Equal(t, "$KE", dev.readLine())
	require.ErrorIs(t, await(t, res).err, context.DeadlineExceeded)

	// The ping is never answered, so the next reply could not be paired.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	r := await(t, exchangeAsync(ctx2, s, wire.Info().Frame()))
	require.ErrorIs(t, r.err, ErrClosed)
	assert.ErrorIs(t, r.err, ErrDesync)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
	assert.ErrorIs(t, s.Err(), ErrDesync)

	_, err := s.Exchange(context.Background(), wire.Info().Frame())
	assert.ErrorIs(t, err, ErrClosed)

	// INF was never written.
	require.NoError(t, dev.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = dev.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestCancelledDrainKeepsSession(t *testing.T) {
	s, dev := newTestSession(t, WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := exchangeAsync(ctx, s, wire.Ping().Frame())
	dev.readLine()
	require.ErrorIs(t, await(t, res).err, context.DeadlineExceeded)

	ctx2, cancel2 := context.WithCancel(context.Background())
	res = exchangeAsync(ctx2, s, wire.Info().Frame())
	time.Sleep(10 * time.Millisecond)
	cancel2()
	require.ErrorIs(t, await(t, res).err, context.Canceled)
	assert.NoError(t, s.Err())

	dev.write("#OK\r\n")
	res = exchangeAsync(context.Background(), s, wire.Info().Frame())
	assert.Equal(t, "$KE,INF", dev.readLine())
	dev.write("#INF,Laurent-2\r\n")
	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, codec.Frame{"#INF", "Laurent-2"}, r.frame)
}

// brokenWriter accepts no writes; reads block until Close.
type brokenWriter struct {
	closed chan struct{}
	once   sync.Once
}

var errBrokenPipe = errors.New("broken pipe")

func (b *brokenWriter) Read([]byte) (int, error) {
	<-b.closed
	return 0, io.EOF
}

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errBrokenPipe
}

func (b *brokenWriter) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestWriteFailureTerminates(t *testing.T) {
	s := New(&brokenWriter{closed: make(chan struct{})})
	defer s.Close()
	sub := s.Subscribe()

	_, err := s.Exchange(context.Background(), wire.Ping().Frame())
	require.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, errBrokenPipe)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write", terr.Op)

	<-s.Done()
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Err(), errBrokenPipe)

	_, err = s.Exchange(context.Background(), wire.Info().Frame())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, errBrokenPipe)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, subscription.ErrClosed)
}

func TestExchangeTimeoutOption(t *testing.T) {
	s, dev := newTestSession(t, WithTimeout(50*time.Millisecond))

	res := exchangeAsync(context.Background(), s, wire.Ping().Frame())
	dev.readLine()

	r := await(t, res)
	assert.ErrorIs(t, r.err, context.DeadlineExceeded)
	assert.NoError(t, s.Err(), "a timeout does not end the session")
}

func TestOverlongLineIsSkipped(t *testing.T) {
	s, dev := newTestSession(t, WithMaxLineLength(64))
	sub := s.Subscribe()

	go func() {
		// A goroutine, because net.Pipe writes block until fully read.
		_, _ = dev.conn.Write([]byte(strings.Repeat("x", 500) + "\r\n#M,EIN,5,1\r\n"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InputChange{Line: 5, Signal: wire.High}, ev)
	assert.NoError(t, s.Err())

	res := exchangeAsync(context.Background(), s, wire.Ping().Frame())
	assert.Equal(t, "$KE", dev.readLine())
	dev.write("#OK\r\n")
	require.NoError(t, await(t, res).err)
}

func TestInvalidTextTerminates(t *testing.T) {
	s, dev := newTestSession(t)
	sub := s.Subscribe()

	dev.write("\xff\xfe\r\n")

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
	assert.ErrorIs(t, s.Err(), ErrClosed)
	assert.ErrorIs(t, s.Err(), codec.ErrInvalidText)

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, subscription.ErrClosed)
}

func TestPeerCloseTerminates(t *testing.T) {
	s, dev := newTestSession(t)
	sub := s.Subscribe()

	res := exchangeAsync(context.Background(), s, wire.Ping().Frame())
	dev.readLine()
	require.NoError(t, dev.conn.Close())

	r := await(t, res)
	require.ErrorIs(t, r.err, ErrClosed)
	assert.ErrorIs(t, r.err, io.EOF)

	var closed *ClosedError
	require.ErrorAs(t, r.err, &closed)
	var terr *TransportError
	require.ErrorAs(t, r.err, &terr)
	assert.Equal(t, "read", terr.Op)

	assert.Equal(t, StateClosed, s.State())

	var got []wire.Event
	for ev := range sub.All(context.Background()) {
		got = append(got, ev)
	}
	assert.Empty(t, got)

	_, err := s.Exchange(context.Background(), wire.Ping().Frame())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseEndsSession(t *testing.T) {
	s, dev := newTestSession(t)
	sub := s.Subscribe()

	res := exchangeAsync(context.Background(), s, wire.Ping().Frame())
	dev.readLine()

	s.Close()
	s.Close()

	r := await(t, res)
	assert.ErrorIs(t, r.err, ErrClosed)

	var closed *ClosedError
	require.ErrorAs(t, s.Err(), &closed)
	assert.Nil(t, closed.Cause)

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, subscription.ErrClosed)

	_, err = s.Exchange(context.Background(), wire.Ping().Frame())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestExchangeRejectsInvalidFields(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Exchange(context.Background(), wire.SetPassword("a,b").Frame())
	assert.ErrorIs(t, err, codec.ErrInvalidField)

	_, err = s.Exchange(context.Background(), codec.Frame{})
	assert.ErrorIs(t, err, codec.ErrInvalidField)
}

func TestExchangeRejectsOverlongCommand(t *testing.T) {
	s, _ := newTestSession(t, WithMaxLineLength(16))

	_, err := s.Exchange(context.Background(), wire.SetPassword(strings.Repeat("p", 20)).Frame())
	assert.ErrorIs(t, err, codec.ErrFrameTooLong)
	assert.NoError(t, s.Err())
}

func TestProtocolCapture(t *testing.T) {
	rec := &recorder{}
	s, dev := newTestSession(t, WithProtocolLogger(rec), WithConnectionID("conn-1"))
	assert.Equal(t, "conn-1", s.ID())

	res := exchangeAsync(context.Background(), s, wire.Relay(2, wire.RelayOn, nil).Frame())
	dev.readLine()
	dev.write("#REL,OK\r\n")
	require.NoError(t, await(t, res).err)

	cmds := rec.messages(log.MessageTypeCommand)
	require.Len(t, cmds, 1)
	assert.Equal(t, "REL", cmds[0].Keyword)
	assert.Equal(t, []string{"$KE", "REL", "2", "1"}, cmds[0].Fields)

	resps := rec.messages(log.MessageTypeResponse)
	require.Len(t, resps, 1)
	assert.Equal(t, "#REL", resps[0].Keyword)
	assert.NotNil(t, resps[0].Latency)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.events)
	first := rec.events[0]
	require.NotNil(t, first.StateChange)
	assert.Equal(t, "OPEN", first.StateChange.NewState)
	for _, e := range rec.events {
		assert.Equal(t, "conn-1", e.ConnectionID)
	}
}

func TestClosedErrorMessage(t *testing.T) {
	assert.Equal(t, "session closed", (&ClosedError{}).Error())
	err := &ClosedError{Cause: &TransportError{Op: "write", Err: io.ErrClosedPipe}}
	assert.Equal(t, "session closed: transport write: io: read/write on closed pipe", err.Error())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
