//go:build !windows

// File: netinit/netinit_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netinit

import (
	"os/signal"
	"syscall"
)

// platformUp ignores SIGPIPE so raw-descriptor writes to a peer that
// already closed return EPIPE rather than terminating the process.
func platformUp() error {
	signal.Ignore(syscall.SIGPIPE)
	return nil
}

// platformDown leaves the SIGPIPE disposition in place: restoring the
// default mid-process would reintroduce the hazard for descriptors
// still open elsewhere.
func platformDown() {}
