// File: netinit/netinit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package netinit models process-wide networking state as a scoped
// acquisition. Windows requires a one-shot WinSock startup with a
// matched teardown; POSIX systems arrange for SIGPIPE to be ignored so
// writes to half-closed sockets surface as EPIPE instead of killing
// the process. A Server refuses to start unless a Guard is live.
package netinit

import (
	"fmt"
	"sync"
)

var (
	mu   sync.Mutex
	refs int
)

// Guard represents one acquisition of the process networking state.
// Release it when the owner is done; the underlying teardown runs when
// the last guard is released.
type Guard struct {
	released bool
}

// Acquire initializes process networking on first use and increments
// the guard count.
func Acquire() (*Guard, error) {
	mu.Lock()
	defer mu.Unlock()
	if refs == 0 {
		if err := platformUp(); err != nil {
			return nil, fmt.Errorf("netinit: %w", err)
		}
	}
	refs++
	return &Guard{}, nil
}

// Release undoes one Acquire. Releasing twice is a no-op.
func (g *Guard) Release() {
	mu.Lock()
	defer mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	refs--
	if refs == 0 {
		platformDown()
	}
}

// Active reports whether at least one guard is live.
func Active() bool {
	mu.Lock()
	defer mu.Unlock()
	return refs > 0
}
