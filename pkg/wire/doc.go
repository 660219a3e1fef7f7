// Package wire defines the message layer of the Laurent KE protocol.
//
// The codec package turns bytes into frames; this package gives those
// frames meaning:
//   - Commands: controller to device, "$KE[,keyword,args...]"
//   - Responses: device to controller, tag echoes the keyword ("#REL,OK")
//   - Events: unsolicited device notifications, tag "#M" ("#M,EIN,1,1")
//
// # Correlation
//
// The protocol has no request identifier. A response belongs to the most
// recently written command, so the session layer must keep exactly one
// command outstanding. The response parsers here check every identifying
// field they can (relay id, line id, event class) and report a mismatch as
// ErrUnexpectedMessage, which means the pairing has gone out of sync.
//
// # Errors
//
//   - ErrSyntax: the device rejected the command ("#ERR")
//   - ErrAuth: the password was refused
//   - ErrUnexpectedMessage: on-topic reply with the wrong identifier
//   - ErrUnknownMessage: reply shape outside the command's grammar
//   - ErrInvalidPayload: malformed numeric or signal field
package wire
