// Package transport opens byte streams to Laurent controllers and watches
// their liveness.
//
// Controllers listen on plain TCP (port 2424 by default). When a board sits
// behind a TLS terminating proxy, Dial wraps the connection in TLS.
//
// # Keep-Alive
//
// The KE protocol has no transport-level heartbeat. KeepAlive sends a bare
// "$KE" ping through a Pinger on a fixed interval and reports the connection
// dead after a number of consecutive failed pings:
//   - Ping interval: 30 seconds
//   - Ping timeout: 5 seconds
//   - Max missed pings: 3
//   - Maximum detection delay: 95 seconds
package transport
