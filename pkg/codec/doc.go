// Package codec implements the line framing used by Laurent controllers.
//
// Every protocol message is one line of text: comma separated fields
// terminated by CRLF. The protocol defines no escaping, so a field can never
// contain a comma, a carriage return or a line feed.
//
// # Framing
//
//	┌──────────┬───┬─────────┬───┬─────┬───┬─────────┬────────┐
//	│ field 0  │ , │ field 1 │ , │ ... │ , │ field n │ \r \n  │
//	└──────────┴───┴─────────┴───┴─────┴───┴─────────┴────────┘
//
// Field 0 is the tag. Outbound lines start with the "$KE" selector; inbound
// responses echo the command keyword ("#REL", "#RDR", ...) and unsolicited
// notifications start with the "#M" event marker.
//
// # Overflow
//
// Decoding is incremental: the Codec remembers how far it already scanned so
// a partially received line is not rescanned on every call. A line longer
// than the configured maximum (1024 bytes by default) is dropped. The decoder
// reports ErrFrameTooLong once, discards input up to the next line feed and
// then resumes normal framing, so one oversized line never costs the
// connection.
package codec
