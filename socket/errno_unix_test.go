//go:build !windows

// File: socket/errno_unix_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// Accept must retry an aborted handshake, surface resource exhaustion
// without killing the listener, and treat everything else as fatal.
// The split lives in the errno classifiers; a misfiled errno here
// turns one aborted peer into a dead server.
func TestAcceptErrnoClassification(t *testing.T) {
	for _, e := range []error{unix.ECONNABORTED, unix.EINTR} {
		wrapped := os.NewSyscallError("accept", e)
		if !isAcceptAborted(wrapped) {
			t.Errorf("%v: not classified as aborted handshake", e)
		}
		if isAcceptOverload(wrapped) {
			t.Errorf("%v: also classified as overload", e)
		}
	}

	for _, e := range []error{unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM} {
		wrapped := os.NewSyscallError("accept", e)
		if !IsAcceptOverload(wrapped) {
			t.Errorf("%v: not classified as overload", e)
		}
		if isAcceptAborted(wrapped) {
			t.Errorf("%v: also classified as aborted handshake", e)
		}
	}

	for _, e := range []error{unix.EBADF, unix.EINVAL, unix.ENOTSOCK} {
		wrapped := os.NewSyscallError("accept", e)
		if IsAcceptOverload(wrapped) || isAcceptAborted(wrapped) {
			t.Errorf("%v: misclassified as recoverable", e)
		}
	}

	if IsAcceptOverload(nil) {
		t.Error("nil classified as overload")
	}
}
