// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values and the platform-neutral failure taxonomy shared
// across the watcher, socket, and server packages.

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors used across the library.
var (
	ErrTimedOut          = errors.New("poll timed out")
	ErrNotSupported      = errors.New("operation not supported")
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	ErrNoBufferSpace     = errors.New("no buffer space available")
	ErrInvalidState      = errors.New("operation invalid in current state")
	ErrNoDescriptor      = errors.New("no descriptor")
	ErrBadMessage        = errors.New("bad message")
	ErrWatcherClosed     = errors.New("watcher is closed")
	ErrNeedResolve       = errors.New("address is a hostname, resolve it first")
)

// FailureClass partitions every failure an operation can surface, per
// the propagation policy: transient failures produce no callback,
// endpoint-fatal failures remove one endpoint, watcher-fatal failures
// cancel the server.
type FailureClass int

const (
	// FailureNone: no failure.
	FailureNone FailureClass = iota

	// FailureTransient: would-block; the reactor re-arms interest and
	// retries on the next readiness transition.
	FailureTransient

	// FailurePeerClosed: orderly end-of-stream from the peer.
	FailurePeerClosed

	// FailureResolver: name resolution failed; fatal to the attempt.
	FailureResolver

	// FailureProtocol: malformed protocol input; fatal to the endpoint.
	FailureProtocol

	// FailureSystem: unexpected errno from the kernel; fatal to the
	// watcher, the server cancels.
	FailureSystem
)

// String names the class for diagnostics.
func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailurePeerClosed:
		return "peer-closed"
	case FailureResolver:
		return "resolver"
	case FailureProtocol:
		return "protocol"
	case FailureSystem:
		return "system"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Failure wraps an underlying error with its class so callers can
// route it without inspecting platform errno values.
type Failure struct {
	Class FailureClass
	Err   error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Class.String()
	}
	return fmt.Sprintf("%s: %v", f.Class, f.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (f *Failure) Unwrap() error { return f.Err }

// NewFailure builds a classified failure.
func NewFailure(class FailureClass, err error) *Failure {
	return &Failure{Class: class, Err: err}
}

// ClassOf extracts the failure class from err, FailureSystem when the
// error carries no classification, FailureNone for nil.
func ClassOf(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Class
	}
	return FailureSystem
}
