// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package socket owns one native descriptor per Socket and drives it
// through the connection state machine:
//
//	Unconnected ──Bind──▶ Bound ──Listen──▶ Listening
//	Unconnected ──Connect──▶ LookingUpHost ──▶ Connecting ──▶ Connected
//	any other   ──Shutdown/Disconnect──▶ Closing ──▶ Unconnected
//
// A Socket is not safe for concurrent use and must not be copied;
// exactly one owner holds the descriptor until Disconnect or Detach.
// Outbound bytes that cannot be written immediately are retained in a
// FIFO so a later write-readiness event can flush them.
package socket
