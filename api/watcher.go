// File: api/watcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// TimeoutInfinite requests that Poll block until an event fires.
// Any non-negative value is a deadline in microseconds; backends
// convert to their native resolution (struct timeval for select,
// milliseconds for poll and epoll, struct timespec for kqueue).
const TimeoutInfinite int64 = -1

// BlockingAdjustment is the discipline a backend imposes on every
// descriptor it watches. Register and Modify return it so the caller
// can align the socket's blocking mode with the backend's requirement.
type BlockingAdjustment int

const (
	// BlockingUnchanged leaves the descriptor's mode alone.
	BlockingUnchanged BlockingAdjustment = iota

	// ForceBlocking requires watched descriptors to be blocking.
	ForceBlocking

	// ForceNonBlocking requires watched descriptors to be
	// non-blocking (WSAAsyncSelect imposes this).
	ForceNonBlocking
)

// EmitFunc receives one delivered readiness event. It runs inside
// Poll; it may freely register, modify, or unregister any descriptor,
// including the one being delivered.
type EmitFunc func(fd int, events EventMask)

// Watcher multiplexes readiness over a set of descriptors. All methods
// must be called from the thread that owns the watcher; none of them
// panic across the boundary, failures come back as errors.
type Watcher interface {
	// Interest reports the currently registered interest bits for fd.
	// Backends whose interest set lives in the kernel return EventNone
	// for every descriptor.
	Interest(fd int) EventMask

	// Register adds fd with exactly mask. Registering a descriptor
	// that is already present fails with ErrAlreadyRegistered.
	Register(fd int, mask EventMask) (BlockingAdjustment, error)

	// Modify replaces fd's interest with mask. Unknown descriptors
	// are a no-op. After Modify returns, the next Poll reflects
	// exactly mask for fd.
	Modify(fd int, mask EventMask) (BlockingAdjustment, error)

	// Unregister removes fd. Unknown descriptors are a no-op.
	Unregister(fd int) error

	// UnregisterClosed removes fd after the descriptor has been
	// closed. It must succeed even on backends where close already
	// dropped the kernel-side registration.
	UnregisterClosed(fd int) error

	// Clear unregisters every descriptor.
	Clear() error

	// Poll waits up to timeoutUS microseconds (TimeoutInfinite to
	// block) and invokes emit once per ready descriptor. It returns
	// ErrTimedOut when the deadline passes with no events, and must
	// tolerate emit mutating the registration set mid-delivery.
	Poll(timeoutUS int64, emit EmitFunc) error

	// Close releases backend resources. The watcher is unusable
	// afterwards.
	Close() error
}
