// File: socket/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"io"
	"os"

	"github.com/eapache/queue"

	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
)

const invalidFD = -1

// ErrorHandler observes classified failures on a Socket. The handler
// is never invoked for transient would-block conditions.
type ErrorHandler func(fd int, err error)

// Socket owns one native socket descriptor. The zero value is not
// usable; construct with New.
type Socket struct {
	fd       int
	typ      Type
	state    State
	family   addr.Family
	blocking bool // intent before a descriptor exists, effective after

	// Outbound chunks that could not be written yet, oldest first.
	outbound    *queue.Queue
	outboundLen int
	wroteFlag   bool

	handler ErrorHandler
}

// New returns a stream Socket in the Unconnected state with no
// descriptor. Sockets are blocking until SetBlocking(false).
func New() *Socket { return NewTyped(Stream) }

// NewTyped returns a Socket of the given transport kind.
func NewTyped(typ Type) *Socket {
	return &Socket{
		fd:       invalidFD,
		typ:      typ,
		state:    Unconnected,
		blocking: true,
		outbound: queue.New(),
	}
}

// adopt wraps an already-open descriptor, as produced by Accept.
func adopt(fd int, typ Type, family addr.Family, blocking bool) *Socket {
	return &Socket{
		fd:       fd,
		typ:      typ,
		state:    Connected,
		family:   family,
		blocking: blocking,
		outbound: queue.New(),
	}
}

// FD exposes the native descriptor, invalid (-1) when none is open.
func (s *Socket) FD() int { return s.fd }

// State reports the lifecycle position.
func (s *Socket) State() State { return s.state }

// Family reports the family of the open descriptor, or the zero
// family before one exists.
func (s *Socket) Family() addr.Family { return s.family }

// Blocking reports the effective blocking mode, or the recorded
// intent before a descriptor exists.
func (s *Socket) Blocking() bool { return s.blocking }

// SetErrorHandler installs the failure hook. A nil handler silences
// notifications; the Socket is still closed on fatal failures by its
// owner.
func (s *Socket) SetErrorHandler(h ErrorHandler) { s.handler = h }

// SetBlocking records the desired blocking mode and applies it to the
// descriptor when one is open. Safe to call before the descriptor
// exists; the intent is applied at socket creation. Idempotent.
func (s *Socket) SetBlocking(blocking bool) error {
	s.blocking = blocking
	if s.fd == invalidFD {
		return nil
	}
	if err := sysSetNonblock(s.fd, !blocking); err != nil {
		return s.fatal(os.NewSyscallError("setnonblock", err))
	}
	return nil
}

// ensure opens the descriptor for the given family if none exists.
func (s *Socket) ensure(family addr.Family) error {
	if s.fd != invalidFD {
		return nil
	}
	fd, err := sysSocket(family, s.typ)
	if err != nil {
		return s.fatal(os.NewSyscallError("socket", err))
	}
	s.fd = fd
	s.family = family
	if !s.blocking {
		if err := sysSetNonblock(fd, true); err != nil {
			s.closeFD()
			return s.fatal(os.NewSyscallError("setnonblock", err))
		}
	}
	return nil
}

// Bind resolves a and binds the socket to it, trying each resolved
// address in order; the first successful attempt wins. SO_REUSEADDR
// is applied before bind. Requires the Unconnected state.
func (s *Socket) Bind(a addr.Address, port uint16) error {
	if s.state != Unconnected {
		return api.ErrInvalidState
	}
	candidates, err := s.lookup(a)
	if err != nil {
		return err
	}
	var lastErr error
	for _, cand := range candidates {
		if err := s.ensure(cand.Family()); err != nil {
			return err
		}
		if err := sysReuseAddr(s.fd); err != nil {
			lastErr = os.NewSyscallError("setsockopt", err)
			s.closeFD()
			continue
		}
		if err := sysBind(s.fd, cand, port); err != nil {
			lastErr = os.NewSyscallError("bind", err)
			s.closeFD()
			continue
		}
		s.state = Bound
		return nil
	}
	if lastErr == nil {
		lastErr = api.ErrNeedResolve
	}
	return s.fatal(lastErr)
}

// Listen moves a Bound stream socket to Listening. A non-positive
// backlog selects the system maximum.
func (s *Socket) Listen(backlog int) error {
	if s.state != Bound || s.typ != Stream {
		return api.ErrInvalidState
	}
	if backlog <= 0 {
		backlog = maxBacklog()
	}
	if err := sysListen(s.fd, backlog); err != nil {
		return s.fatal(os.NewSyscallError("listen", err))
	}
	s.state = Listening
	return nil
}

// Connect resolves a and connects to it. In blocking mode the call is
// synchronous and tries each resolved address in order. In
// non-blocking mode the connect is issued against the first resolved
// address and the Socket moves to Connecting; completion is observed
// through a write-readiness event followed by ConfirmConnect.
func (s *Socket) Connect(a addr.Address, port uint16) error {
	if s.state != Unconnected && s.state != Bound {
		return api.ErrInvalidState
	}
	prev := s.state
	s.state = LookingUpHost
	candidates, err := s.lookup(a)
	if err != nil {
		s.state = prev
		return err
	}
	if len(candidates) == 0 {
		s.state = prev
		return s.fatal(api.NewFailure(api.FailureResolver, api.ErrNeedResolve))
	}

	if !s.blocking {
		cand := candidates[0]
		if err := s.ensure(cand.Family()); err != nil {
			s.state = prev
			return err
		}
		s.state = Connecting
		err := sysConnect(s.fd, cand, port)
		switch {
		case err == nil:
			s.state = Connected
			return nil
		case isInProgress(err):
			return nil
		default:
			s.state = prev
			return s.fatal(os.NewSyscallError("connect", err))
		}
	}

	var lastErr error
	for _, cand := range candidates {
		if err := s.ensure(cand.Family()); err != nil {
			s.state = prev
			return err
		}
		s.state = Connecting
		if err := sysConnect(s.fd, cand, port); err != nil {
			lastErr = os.NewSyscallError("connect", err)
			s.closeFD()
			s.state = LookingUpHost
			continue
		}
		s.state = Connected
		return nil
	}
	s.state = prev
	return s.fatal(lastErr)
}

// ConfirmConnect completes a non-blocking connect after the first
// write-readiness event: readiness alone does not imply success, the
// pending socket error decides.
func (s *Socket) ConfirmConnect() error {
	if s.state != Connecting {
		return api.ErrInvalidState
	}
	if err := sysSocketError(s.fd); err != nil {
		return s.fatal(os.NewSyscallError("connect", err))
	}
	s.state = Connected
	return nil
}

// Accept dequeues one pending connection from a Listening socket.
// On a non-blocking listener with nothing pending it returns
// (nil, nil). The accepted Socket is Connected; its blocking mode is
// the platform's effective accept inheritance, not the listener's.
func (s *Socket) Accept() (*Socket, error) {
	if s.state != Listening {
		return nil, api.ErrInvalidState
	}
	for {
		nfd, _, _, err := sysAccept(s.fd)
		if err == nil {
			return adopt(nfd, s.typ, s.family, acceptedBlocking(s.blocking)), nil
		}
		switch {
		case isWouldBlock(err):
			return nil, nil
		case isAcceptAborted(err):
			// The peer abandoned the handshake while it sat in the
			// queue. Accept the next one instead.
			continue
		case isAcceptOverload(err):
			// Not a listener failure; the socket stays Listening and
			// the caller may retry once resources return.
			return nil, os.NewSyscallError("accept", err)
		}
		return nil, s.fatal(os.NewSyscallError("accept", err))
	}
}

// IsAcceptOverload reports whether err, as returned by Accept, means
// the process ran out of descriptors or buffers rather than the
// listener itself failing. Such errors leave the socket Listening.
func IsAcceptOverload(err error) bool { return isAcceptOverload(err) }

// Read fills p with at most len(p) bytes. A return of (0, io.EOF)
// means the peer closed in an orderly way; (0, nil) on a non-blocking
// socket means no bytes are currently available. Go slices already
// bound a single read to the syscall ceiling, so no internal chunking
// is required.
func (s *Socket) Read(p []byte) (int, error) {
	if s.fd == invalidFD {
		return 0, api.ErrNoDescriptor
	}
	n, err := sysRead(s.fd, p)
	if err != nil {
		if isWouldBlock(err) {
			return 0, nil
		}
		return 0, s.fatal(os.NewSyscallError("read", err))
	}
	if n == 0 && len(p) > 0 && s.typ == Stream {
		return 0, io.EOF
	}
	return n, nil
}

// Write sends as much of p as the descriptor accepts and retains the
// unwritten tail in the outbound queue so that the next
// write-readiness event can flush it. The returned count is the
// number of bytes handed to the kernel by this call; queued bytes are
// not lost.
func (s *Socket) Write(p []byte) (int, error) {
	if s.fd == invalidFD {
		return 0, api.ErrNoDescriptor
	}
	s.wroteFlag = true
	if len(p) == 0 {
		return 0, nil
	}
	// Preserve ordering: earlier queued bytes go first.
	if s.outboundLen > 0 {
		s.enqueue(p)
		return 0, nil
	}
	n, err := sysWrite(s.fd, p)
	if err != nil {
		if isWouldBlock(err) {
			s.enqueue(p)
			return 0, nil
		}
		return 0, s.fatal(os.NewSyscallError("write", err))
	}
	if n < len(p) {
		s.enqueue(p[n:])
	}
	return n, nil
}

// Flush drains the outbound queue until it empties or the descriptor
// stops accepting bytes. It reports whether the queue is now empty.
func (s *Socket) Flush() (bool, error) {
	for s.outbound.Length() > 0 {
		head := s.outbound.Peek().([]byte)
		n, err := sysWrite(s.fd, head)
		if n > 0 {
			s.outboundLen -= n
		}
		if err != nil {
			if isWouldBlock(err) {
				if n > 0 {
					s.replaceHead(head[n:])
				}
				return false, nil
			}
			return false, s.fatal(os.NewSyscallError("write", err))
		}
		if n < len(head) {
			s.replaceHead(head[n:])
			return false, nil
		}
		s.outbound.Remove()
	}
	return true, nil
}

// enqueue copies p onto the outbound FIFO. The copy is required: the
// caller may reuse its buffer immediately.
func (s *Socket) enqueue(p []byte) {
	c := make([]byte, len(p))
	copy(c, p)
	s.outbound.Add(c)
	s.outboundLen += len(p)
}

// replaceHead substitutes the queue head with its unwritten tail,
// preserving FIFO order.
func (s *Socket) replaceHead(tail []byte) {
	n := s.outbound.Length()
	s.outbound.Remove()
	s.outbound.Add(tail)
	for i := 1; i < n; i++ {
		s.outbound.Add(s.outbound.Remove())
	}
}

// PendingWrite reports whether outbound bytes are queued.
func (s *Socket) PendingWrite() bool { return s.outbound.Length() > 0 }

// PendingWriteBytes reports how many outbound bytes are queued.
func (s *Socket) PendingWriteBytes() int { return s.outboundLen }

// ConsumeWriteFlag reports whether Write was called since the last
// call, clearing the flag. The server uses it to arm write interest
// only when a handler produced output.
func (s *Socket) ConsumeWriteFlag() bool {
	w := s.wroteFlag
	s.wroteFlag = false
	return w
}

// Shutdown half-closes the connection. Permitted from the Connected,
// Bound, and Listening states.
func (s *Socket) Shutdown(how How) error {
	switch s.state {
	case Connected, Bound, Listening:
	default:
		return api.ErrInvalidState
	}
	if err := sysShutdown(s.fd, how); err != nil {
		return s.fatal(os.NewSyscallError("shutdown", err))
	}
	return nil
}

// Disconnect closes the descriptor, drops any queued outbound bytes,
// and returns the Socket to Unconnected. Safe to call repeatedly.
func (s *Socket) Disconnect() {
	if s.state == Unconnected && s.fd == invalidFD {
		return
	}
	s.state = Closing
	s.closeFD()
	for s.outbound.Length() > 0 {
		s.outbound.Remove()
	}
	s.outboundLen = 0
	s.wroteFlag = false
	s.state = Unconnected
}

// Detach releases ownership of the descriptor without closing it and
// leaves the Socket terminal. The caller becomes responsible for the
// returned descriptor.
func (s *Socket) Detach() int {
	fd := s.fd
	s.fd = invalidFD
	s.state = Unconnected
	return fd
}

// LocalAddress reports the bound local address and port.
func (s *Socket) LocalAddress() (addr.Address, uint16, error) {
	if s.fd == invalidFD {
		return addr.Address{}, 0, api.ErrNoDescriptor
	}
	return sysLocalName(s.fd)
}

// RemoteAddress reports the connected peer address and port.
func (s *Socket) RemoteAddress() (addr.Address, uint16, error) {
	if s.fd == invalidFD {
		return addr.Address{}, 0, api.ErrNoDescriptor
	}
	return sysPeerName(s.fd)
}

// lookup expands a into bindable/connectable candidates.
func (s *Socket) lookup(a addr.Address) ([]addr.Address, error) {
	out, err := a.Resolve(context.Background(), s.family)
	if err != nil {
		return nil, s.fatal(api.NewFailure(api.FailureResolver, err))
	}
	return out, nil
}

// fatal routes a non-transient failure through the handler hook and
// returns it.
func (s *Socket) fatal(err error) error {
	if err == nil {
		return nil
	}
	if s.handler != nil {
		s.handler(s.fd, err)
	}
	return err
}

// closeFD closes and forgets the descriptor.
func (s *Socket) closeFD() {
	if s.fd != invalidFD {
		_ = sysClose(s.fd)
		s.fd = invalidFD
	}
}
