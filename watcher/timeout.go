// File: watcher/timeout.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import "github.com/momentics/sockmux/api"

// timeoutMillis converts the microsecond API timeout to milliseconds
// for poll-style backends, rounding partial milliseconds up so a
// finite request never becomes a busy spin, and mapping the infinite
// request to the backend's native -1.
func timeoutMillis(timeoutUS int64) int {
	if timeoutUS < 0 {
		return -1
	}
	return int((timeoutUS + 999) / 1000)
}

// validateMask rejects registration masks carrying observation-only
// bits.
func validateMask(mask api.EventMask) error {
	if mask&^api.InterestMask != 0 {
		return api.ErrNotSupported
	}
	return nil
}
