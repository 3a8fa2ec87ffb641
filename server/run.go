// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor loop: poll the watcher, route readiness into endpoint
// callbacks, and keep the write-interest masks truthful.

package server

import (
	"errors"
	"io"

	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/socket"
)

// Run polls until Cancel is called or the last externally-owned
// endpoint is gone. timeoutUS bounds each poll; api.TimeoutInfinite
// is permitted but makes Cancel take effect only after the next
// event.
func (s *Server) Run(timeoutUS int64) error {
	for {
		if s.cancelled.Load() {
			return nil
		}
		if len(s.external) == 0 {
			return nil
		}
		if err := s.PollOnce(timeoutUS); err != nil && !errors.Is(err, api.ErrTimedOut) {
			s.Cancel()
			return err
		}
	}
}

// PollOnce performs one watcher poll and dispatches every delivered
// event. api.ErrTimedOut passes through to the caller; any other
// watcher failure is fatal to the server.
func (s *Server) PollOnce(timeoutUS int64) error {
	return s.watcher.Poll(timeoutUS, s.dispatch)
}

// MessageReceived feeds one message-pump notification into the
// dispatch path. Only meaningful when the watcher is a message-based
// backend (WSAAsyncSelect); it is a no-op otherwise.
func (s *Server) MessageReceived(fd int, winEvents uint32, errCode int) {
	type messageWatcher interface {
		MessageReceived(fd int, winEvents uint32, errCode int, emit api.EmitFunc)
	}
	if mw, ok := s.watcher.(messageWatcher); ok {
		mw.MessageReceived(fd, winEvents, errCode, s.dispatch)
	}
}

// dispatch routes one readiness event. It runs inside Watcher.Poll;
// the watcher tolerates the registration changes made here.
func (s *Server) dispatch(fd int, ev api.EventMask) {
	c, isOwned := s.owned[fd]
	if !isOwned {
		if c = s.external[fd]; c == nil {
			// Stale event for a descriptor already removed.
			_ = s.watcher.Unregister(fd)
			return
		}
	}
	s.metrics.Add("server.dispatched", 1)

	if c.Sock().State() == socket.Listening {
		s.acceptLoop(c.(Listener))
		return
	}
	s.dispatchConn(fd, c, isOwned, ev)
}

// acceptLoop accepts until would-block on a non-blocking listener, or
// exactly once on a blocking one, wrapping each accepted socket via
// the listener's factory and taking ownership of the result.
func (s *Server) acceptLoop(l Listener) {
	lsock := l.Sock()
	for {
		child, err := lsock.Accept()
		if err != nil {
			s.metrics.Add("server.accept_errors", 1)
			l.HandleError(err)
			if socket.IsAcceptOverload(err) {
				// The listener is still healthy; leave it registered
				// and retry on the next readiness event.
				return
			}
			s.remove(lsock.FD(), l, false, false)
			return
		}
		if child == nil {
			return // nothing pending
		}
		c := l.NewConn(child)
		if c == nil {
			child.Disconnect()
		} else if err := s.AddOwned(c); err != nil {
			c.HandleError(err)
			child.Disconnect()
		} else {
			s.metrics.Add("server.accepted", 1)
		}
		if lsock.Blocking() {
			return // a blocking listener yields one accept per event
		}
	}
}

// dispatchConn delivers write readiness before read readiness so that
// bytes produced by the read handler can ride the same flush.
func (s *Server) dispatchConn(fd int, c Conn, isOwned bool, ev api.EventMask) {
	sock := c.Sock()

	if ev&api.EventWrite != 0 {
		if sock.State() == socket.Connecting {
			// Write readiness on a connecting socket only signals that
			// the attempt finished; SO_ERROR decides how.
			if err := sock.ConfirmConnect(); err != nil {
				c.HandleError(err)
				s.remove(fd, c, isOwned, false)
				return
			}
		}
		if _, err := sock.Flush(); err != nil {
			c.HandleError(err)
			s.remove(fd, c, isOwned, false)
			return
		}
		if err := c.ReadyWrite(); err != nil {
			c.HandleError(err)
			s.remove(fd, c, isOwned, false)
			return
		}
	}

	if ev&(api.EventRead|api.EventExcept) != 0 {
		if err := c.ReadyRead(); err != nil {
			if !errors.Is(err, io.EOF) {
				c.HandleError(err)
			}
			s.remove(fd, c, isOwned, false)
			return
		}
	}

	if ev&(api.EventError|api.EventInvalid) != 0 {
		c.HandleError(api.NewFailure(api.FailureSystem, api.ErrNoDescriptor))
		s.remove(fd, c, isOwned, false)
		return
	}

	if sock.State() == socket.Unconnected {
		// The handler tore the endpoint down; its descriptor is gone.
		s.remove(fd, c, isOwned, true)
		return
	}

	wantWrite := sock.ConsumeWriteFlag() || sock.PendingWrite()

	if ev&api.EventHangup != 0 && !wantWrite {
		// Peer is gone and nothing is left to flush.
		s.remove(fd, c, isOwned, false)
		return
	}

	mask := api.EventRead | api.EventExcept
	if wantWrite || sock.State() == socket.Connecting {
		mask |= api.EventWrite
	}
	s.setInterest(sock, mask)
}

// remove unregisters fd and drops the endpoint from its registry.
// Owned endpoints are disconnected; external ones are left to their
// owner. closed indicates the descriptor is already gone, which makes
// the kernel-side deregistration a formality.
func (s *Server) remove(fd int, c Conn, isOwned bool, closed bool) {
	if isOwned {
		c.Sock().Disconnect()
		closed = true
		delete(s.owned, fd)
	} else {
		delete(s.external, fd)
	}
	if closed {
		_ = s.watcher.UnregisterClosed(fd)
	} else {
		_ = s.watcher.Unregister(fd)
	}
	delete(s.masks, fd)
	s.metrics.Add("server.removed", 1)
}
