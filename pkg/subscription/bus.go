package subscription

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
)

// DefaultHistory is the per-subscriber buffer size used when none is given.
const DefaultHistory = 1024

// ErrClosed is returned by Next once the subscription has ended and every
// pending item was consumed.
var ErrClosed = errors.New("subscription closed")

// Bus broadcasts values of type T to its subscribers.
type Bus[T any] struct {
	mu      sync.Mutex
	history int
	subs    map[*Subscription[T]]struct{}
	closed  bool
}

// NewBus creates a bus whose subscribers buffer up to history items.
// A non-positive history selects DefaultHistory.
func NewBus[T any](history int) *Bus[T] {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Bus[T]{
		history: history,
		subs:    make(map[*Subscription[T]]struct{}),
	}
}

// History returns the per-subscriber buffer size.
func (b *Bus[T]) History() int {
	return b.history
}

// Subscribe registers a new subscriber. Subscribing to a closed bus returns
// a subscription that is already ended.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		bus: b,
		ch:  make(chan T, b.history),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers v to every current subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.offer(v)
	}
}

// Len returns the number of registered subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Further publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

func (b *Bus[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Subscription is one subscriber's view of a Bus.
type Subscription[T any] struct {
	bus    *Bus[T]
	ch     chan T
	missed atomic.Uint64
}

// offer enqueues v, evicting the oldest pending item when the buffer is
// full. Called with the bus lock held, so there is a single sender.
func (s *Subscription[T]) offer(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
			s.missed.Add(1)
		default:
			// The consumer made room in the meantime.
		}
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Next waits for the next item. It returns ErrClosed once the subscription
// has ended and its buffer is empty, or the context error.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	select {
	case v, ok := <-s.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// All returns a lazy sequence over the items of this subscription. The
// sequence ends when the subscription ends or ctx is done. Items consumed by
// one iteration are gone; the sequence cannot be restarted.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Missed returns how many items were dropped because the buffer was full.
func (s *Subscription[T]) Missed() uint64 {
	return s.missed.Load()
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.bus.remove(s)
}
