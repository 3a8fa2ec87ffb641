// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the contracts shared by all sockmux packages:
// the portable readiness-event flags, the Watcher multiplexing
// interface implemented by the platform backends (select, poll, epoll,
// kqueue, WSAAsyncSelect), and the platform-neutral error surface.
//
// Nothing in this package touches the operating system. Concrete
// backends live in the watcher package; socket ownership and state
// live in the socket package; the reactor loop lives in server.
package api
