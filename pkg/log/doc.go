// Package log provides protocol capture for Laurent controller sessions.
//
// This package defines the Logger interface and Event types for recording
// what crosses the wire at two layers: raw lines (transport) and classified
// commands, responses and notifications (wire). It is separate from
// operational logging (slog): protocol capture is a complete machine-readable
// trace for debugging device behavior after the fact.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts = append(opts, session.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For field capture: write to a binary file
//	fl, _ := log.NewFileLogger("/var/log/laurent/relay-board.llog")
//
//	// Both: use MultiLogger
//	log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys, using
// the .llog extension. The laurent-log tool views, filters and exports them.
package log
