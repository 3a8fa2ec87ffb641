// File: api/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventMask is a bitmask of portable readiness conditions. The first
// three bits (Read, Write, Except) are the registrable interest set;
// the remaining bits (Error, Hangup, Invalid) are observation-only and
// may appear in delivered events regardless of interest.
type EventMask uint32

const (
	// EventRead fires when a read, or an accept on a listener, will
	// not block.
	EventRead EventMask = 1 << iota

	// EventWrite fires when buffered outbound data can make progress.
	EventWrite

	// EventExcept fires on exceptional conditions (out-of-band data).
	EventExcept

	// EventError reports a descriptor-level error condition.
	EventError

	// EventHangup reports that the peer closed its write side. No new
	// data will arrive once the currently buffered bytes are drained.
	EventHangup

	// EventInvalid reports that the descriptor is not open.
	EventInvalid
)

// EventNone is the empty mask.
const EventNone EventMask = 0

// InterestMask is the union of all registrable bits. Bits outside it
// are rejected by Register and Modify.
const InterestMask = EventRead | EventWrite | EventExcept

// Has reports whether every bit of m is set in e.
func (e EventMask) Has(m EventMask) bool { return e&m == m }

// String renders the mask as a "|"-joined list of bit names.
func (e EventMask) String() string {
	str := ""
	name := func(bit EventMask, n string) {
		if e&bit == 0 {
			return
		}
		if str != "" {
			str += "|"
		}
		str += n
	}
	name(EventRead, "Read")
	name(EventWrite, "Write")
	name(EventExcept, "Except")
	name(EventError, "Error")
	name(EventHangup, "Hangup")
	name(EventInvalid, "Invalid")
	if str == "" {
		return "None"
	}
	return str
}
