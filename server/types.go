// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/sockmux/socket"

// Conn is a protocol endpoint driven by the reactor. Implementations
// wrap a *socket.Socket and layer protocol state on top of the
// readiness callbacks. All callbacks run on the reactor thread.
type Conn interface {
	// Sock exposes the owned socket.
	Sock() *socket.Socket

	// ReadyRead is called on read readiness. The implementation
	// drains what it wants from the socket; bytes it writes during
	// the callback are flushed opportunistically afterwards.
	ReadyRead() error

	// ReadyWrite is called on write readiness after the server has
	// flushed the socket's outbound queue, so streaming protocols can
	// produce their next chunk.
	ReadyWrite() error

	// HandleError observes a fatal classified failure just before the
	// server removes the endpoint.
	HandleError(err error)
}

// Listener is a Conn whose socket is in the Listening state. The
// server asks it to wrap every accepted socket in a new protocol
// endpoint; returning nil refuses the connection and closes it.
type Listener interface {
	Conn
	NewConn(accepted *socket.Socket) Conn
}
