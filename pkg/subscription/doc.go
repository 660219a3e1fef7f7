// Package subscription implements the broadcast bus that fans device events
// out to any number of independent subscribers.
//
// # Delivery
//
// Every subscriber receives every item published after it subscribed, in
// publication order. Items published before a subscriber joined are never
// replayed.
//
// # Bounded History
//
// Each subscriber has a buffer of the bus history size. Publishing never
// blocks: when a subscriber's buffer is full its oldest pending item is
// dropped and its Missed counter grows. Delivery is therefore best effort
// for slow consumers.
//
// # Lifecycle
//
// Closing the bus ends every subscription: pending items can still be
// drained, after which Next returns ErrClosed and All stops. Closing a single
// subscription only unregisters it.
package subscription
