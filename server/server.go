// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"sync/atomic"

	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/control"
	"github.com/momentics/sockmux/netinit"
	"github.com/momentics/sockmux/pool"
	"github.com/momentics/sockmux/socket"
	"github.com/momentics/sockmux/watcher"
)

var (
	// ErrNetworkDown is returned by New when no netinit.Guard is live.
	ErrNetworkDown = errors.New("server: process networking not initialized")

	// ErrNotListening is returned by Serve for a socket that is not in
	// the Listening state.
	ErrNotListening = errors.New("server: endpoint is not listening")
)

const defaultReadBufSize = 64 * 1024

// Server is a single-threaded reactor: one watcher, the endpoints it
// owns, and the externally-owned endpoints it serves. Everything, the
// watcher included, must be driven from one thread; distinct Server
// instances on distinct threads must not share sockets or watchers.
type Server struct {
	watcher api.Watcher

	// Disjoint registries keyed by descriptor: a descriptor lives in
	// exactly one of the two while registered with the watcher.
	owned    map[int]Conn
	external map[int]Conn

	// Registered interest per descriptor, mirrored locally because
	// kernel-maintained backends cannot report it back.
	masks map[int]api.EventMask

	cancelled   atomic.Bool
	readBufSize int
	readBufs    *pool.BytePool
	metrics     *control.MetricsRegistry
	probes      *control.DebugProbes
}

// New builds a reactor. A live netinit.Guard is required; the watcher
// defaults to the platform's preferred backend.
func New(opts ...Option) (*Server, error) {
	if !netinit.Active() {
		return nil, ErrNetworkDown
	}
	s := &Server{
		owned:       make(map[int]Conn),
		external:    make(map[int]Conn),
		masks:       make(map[int]api.EventMask),
		readBufSize: defaultReadBufSize,
		probes:      control.NewDebugProbes(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.watcher == nil {
		w, err := watcher.NewDefault()
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	s.readBufs = pool.NewBytePool(s.readBufSize)
	s.probes.RegisterProbe("server.registry", func() control.Gauge {
		return control.Gauge{
			"owned":    len(s.owned),
			"external": len(s.external),
			"interest": len(s.masks),
		}
	})
	return s, nil
}

// Serve registers an externally-owned listening endpoint. The server
// accepts on it and owns every accepted endpoint, but never closes
// the listener itself.
func (s *Server) Serve(l Listener) error {
	sock := l.Sock()
	if sock.State() != socket.Listening {
		return ErrNotListening
	}
	if err := s.register(sock, api.EventRead); err != nil {
		return err
	}
	s.external[sock.FD()] = l
	return nil
}

// Watch registers an externally-owned non-listening endpoint, such
// as a client connection the caller keeps for itself. The server
// dispatches its readiness but never disconnects it; on fatal error
// it is only unregistered. Run keeps looping while at least one
// external endpoint remains.
func (s *Server) Watch(c Conn) error {
	sock := c.Sock()
	if err := s.register(sock, api.InterestMask); err != nil {
		return err
	}
	s.external[sock.FD()] = c
	return nil
}

// AddOwned transfers a connected or connecting endpoint into the
// server. The server assumes its lifetime: on fatal error or hangup
// the endpoint is disconnected and dropped.
func (s *Server) AddOwned(c Conn) error {
	sock := c.Sock()
	if err := s.register(sock, api.InterestMask); err != nil {
		return err
	}
	s.owned[sock.FD()] = c
	return nil
}

// register arms the watcher for sock and applies the backend's
// blocking adjustment to the endpoint.
func (s *Server) register(sock *socket.Socket, mask api.EventMask) error {
	fd := sock.FD()
	if fd < 0 {
		return api.ErrNoDescriptor
	}
	adj, err := s.watcher.Register(fd, mask)
	if err != nil {
		return err
	}
	s.masks[fd] = mask
	return s.applyAdjustment(sock, adj)
}

func (s *Server) applyAdjustment(sock *socket.Socket, adj api.BlockingAdjustment) error {
	switch adj {
	case api.ForceBlocking:
		return sock.SetBlocking(true)
	case api.ForceNonBlocking:
		return sock.SetBlocking(false)
	}
	return nil
}

// setInterest updates the watcher when the desired mask for fd
// changed.
func (s *Server) setInterest(sock *socket.Socket, mask api.EventMask) {
	fd := sock.FD()
	if s.masks[fd] == mask {
		return
	}
	adj, err := s.watcher.Modify(fd, mask)
	if err != nil {
		return
	}
	s.masks[fd] = mask
	_ = s.applyAdjustment(sock, adj)
}

// Watcher exposes the backend, mainly so Windows hosts can feed
// window messages into an AsyncSelect backend.
func (s *Server) Watcher() api.Watcher { return s.watcher }

// Metrics exposes the counter registry.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Probes exposes the debug probe registry.
func (s *Server) Probes() *control.DebugProbes { return s.probes }

// BufferPool exposes the pooled read buffers protocol endpoints draw
// from during ReadyRead.
func (s *Server) BufferPool() *pool.BytePool { return s.readBufs }

// Cancel requests that Run stop at the top of its next iteration. The
// poll in flight is not interrupted; callers wanting bounded latency
// pass a finite timeout to Run.
func (s *Server) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (s *Server) Cancelled() bool { return s.cancelled.Load() }
