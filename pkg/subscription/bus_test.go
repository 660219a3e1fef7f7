package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus[int](8)
	sub := bus.Subscribe()

	for i := range 5 {
		bus.Publish(i)
	}

	ctx := context.Background()
	for want := range 5 {
		got, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, sub.Missed())
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus[string](4)
	a := bus.Subscribe()
	b := bus.Subscribe()
	assert.Equal(t, 2, bus.Len())

	bus.Publish("x")

	ctx := context.Background()
	for _, sub := range []*Subscription[string]{a, b} {
		got, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	}
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus[int](4)
	bus.Publish(1)

	sub := bus.Subscribe()
	bus.Publish(2)

	got, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestBusDropsOldestWhenFull(t *testing.T) {
	bus := NewBus[int](3)
	sub := bus.Subscribe()

	for i := range 5 {
		bus.Publish(i)
	}

	assert.Equal(t, uint64(2), sub.Missed())

	ctx := context.Background()
	for _, want := range []int{2, 3, 4} {
		got, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBusSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	bus := NewBus[int](2)
	slow := bus.Subscribe()
	fast := bus.Subscribe()

	ctx := context.Background()
	for i := range 4 {
		bus.Publish(i)
		got, err := fast.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	assert.Zero(t, fast.Missed())
	assert.Equal(t, uint64(2), slow.Missed())
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()
	bus.Publish(7)
	bus.Close()

	ctx := context.Background()
	got, err := sub.Next(ctx)
	require.NoError(t, err, "pending items stay readable after close")
	assert.Equal(t, 7, got)

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.Zero(t, bus.Len())

	// Publishing after close is a no-op.
	bus.Publish(8)
	bus.Close()
}

func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus[int](4)
	bus.Close()

	sub := bus.Subscribe()
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()
	other := bus.Subscribe()

	sub.Close()
	sub.Close()
	assert.Equal(t, 1, bus.Len())

	bus.Publish(1)
	got, err := other.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscriptionNextHonorsContext(t *testing.T) {
	bus := NewBus[int](4)
	sub := bus.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionAll(t *testing.T) {
	bus := NewBus[int](8)
	sub := bus.Subscribe()
	for i := range 3 {
		bus.Publish(i)
	}
	bus.Close()

	var got []int
	for v := range sub.All(context.Background()) {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestSubscriptionAllStopsEarly(t *testing.T) {
	bus := NewBus[int](8)
	sub := bus.Subscribe()
	for i := range 3 {
		bus.Publish(i)
	}

	for v := range sub.All(context.Background()) {
		if v == 1 {
			break
		}
	}

	got, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus[int](DefaultHistory)
	sub := bus.Subscribe()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				bus.Publish(w*100 + i)
			}
		}()
	}
	wg.Wait()
	bus.Close()

	count := 0
	for range sub.All(context.Background()) {
		count++
	}
	assert.Equal(t, 400, count)
	assert.Zero(t, sub.Missed())
}

func TestNewBusDefaultHistory(t *testing.T) {
	assert.Equal(t, DefaultHistory, NewBus[int](0).History())
	assert.Equal(t, 5, NewBus[int](5).History())
}
