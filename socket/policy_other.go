//go:build !linux

// File: socket/policy_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

// acceptedBlocking reports the effective blocking mode of a freshly
// accepted descriptor. BSD-family systems and Windows inherit it from
// the listener.
func acceptedBlocking(listenerBlocking bool) bool { return listenerBlocking }
