// Package gateway is the typed command API of a Laurent controller.
//
// Gateway is the interface applications program against; StreamGateway
// implements it on top of a session. Each method builds its command line,
// performs one exchange and interprets the reply with the matching response
// grammar. The mocks subpackage holds a testify double for consumers.
package gateway
