// File: server/options.go
// Package server defines functional options for the reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithWatcher selects the readiness backend instead of the platform
// default.
func WithWatcher(w api.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

// WithReadBufferSize sets the pooled read-buffer size handed to
// protocol endpoints.
func WithReadBufferSize(n int) Option {
	return func(s *Server) { s.readBufSize = n }
}

// WithMetrics shares an external counter registry instead of a
// private one.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(s *Server) { s.metrics = mr }
}
