// Package session drives one connection to a Laurent controller.
//
// A Session owns the byte stream. Two goroutines run per session: a reader
// pump, the only caller of Read, and the I/O loop, the only caller of Write,
// which owns the line codec and the receive buffer. The loop waits on three
// sources with no priority between them: a chunk of received bytes, a
// command to send, and a close request.
//
// # Exchanges
//
// The device answers commands strictly in order and its replies carry no
// correlation ID, so at most one command may be in flight. Exchange holds
// exclusive access to the session from sending the command until its single
// response has been consumed. A caller that gives up after its command was
// accepted leaves a stale response behind; the next caller discards it
// before sending.
//
// # Events
//
// Lines starting with the event marker are parsed and broadcast to every
// subscriber. Events never block responses: a slow subscriber loses its
// oldest buffered events instead.
//
// # Termination
//
// A read or write failure, end of stream, or a line that is not valid UTF-8
// ends the session. The transport is closed, every subscription ends, and
// pending and future exchanges fail with an error matching ErrClosed. A line
// longer than the configured maximum is skipped and the session continues.
package session
