//go:build linux

// File: socket/policy_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

// acceptedBlocking reports the effective blocking mode of a freshly
// accepted descriptor. Linux does not inherit the listener's flags:
// accept always yields a blocking descriptor.
func acceptedBlocking(listenerBlocking bool) bool { return true }
