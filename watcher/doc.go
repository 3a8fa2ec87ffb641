// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package watcher provides the concrete readiness-multiplexing
// backends behind the api.Watcher contract: select and poll
// (level-triggered, POSIX), epoll (Linux), kqueue (BSD/Darwin), and
// WSAAsyncSelect (Windows message pump). NewDefault picks the
// preferred backend for the build platform.
//
// Watchers are single-threaded by design: every method, including the
// emit callbacks made by Poll, runs on the owning reactor thread.
package watcher
