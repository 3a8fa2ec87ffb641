// File: socket/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

// State is the connection lifecycle position of a Socket.
type State int

const (
	// Unconnected: no live descriptor activity; initial and terminal.
	Unconnected State = iota

	// LookingUpHost: resolving a symbolic peer address.
	LookingUpHost

	// Connecting: connect issued, completion not yet observed.
	Connecting

	// Connected: full-duplex stream established.
	Connected

	// Bound: descriptor bound to a local address.
	Bound

	// Listening: passive socket accepting connections.
	Listening

	// Closing: teardown in progress.
	Closing
)

// String names the state.
func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case LookingUpHost:
		return "looking-up-host"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Bound:
		return "bound"
	case Listening:
		return "listening"
	case Closing:
		return "closing"
	}
	return "invalid"
}

// Type selects the transport kind of a Socket.
type Type int

const (
	// Stream is a connection-oriented byte stream (TCP).
	Stream Type = iota

	// Datagram is a message-oriented socket (UDP).
	Datagram
)

// How selects which direction Shutdown closes.
type How int

const (
	ShutRead How = iota
	ShutWrite
	ShutBoth
)
