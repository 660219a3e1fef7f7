// Package connection keeps a gateway to a controller connected.
//
// Manager dials, runs an optional setup step (authorize, enable events),
// watches the session with a keep-alive, and reconnects when the session
// ends. Event subscriptions belong to a session and do not survive a
// reconnect: re-subscribe on the new gateway from OnStateChange or
// WaitConnected.
//
// # Reconnection Strategy
//
// When a connection is lost, the client uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
// To spread reconnects of many clients after a board reboots:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// A reconnection is successful when the stream is open and the setup step,
// if any, succeeded. A failed setup closes the stream and counts as a failed
// attempt.
package connection
