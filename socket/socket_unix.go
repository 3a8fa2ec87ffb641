//go:build !windows

// File: socket/socket_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX descriptor operations behind the platform-neutral Socket
// surface.

package socket

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/addr"
)

func sysSocket(family addr.Family, typ Type) (int, error) {
	af := unix.AF_INET
	if family == addr.FamilyIPv6 {
		af = unix.AF_INET6
	}
	st := unix.SOCK_STREAM
	proto := unix.IPPROTO_TCP
	if typ == Datagram {
		st = unix.SOCK_DGRAM
		proto = unix.IPPROTO_UDP
	}
	fd, err := unix.Socket(af, st, proto)
	if err != nil {
		return invalidFD, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func sysClose(fd int) error { return unix.Close(fd) }

func sysSetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

func sysReuseAddr(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func sysBind(fd int, a addr.Address, port uint16) error {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

func sysListen(fd, backlog int) error { return unix.Listen(fd, backlog) }

func sysConnect(fd int, a addr.Address, port uint16) error {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return err
	}
	return unix.Connect(fd, sa)
}

func sysAccept(fd int) (int, addr.Address, uint16, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return invalidFD, addr.Address{}, 0, err
	}
	unix.CloseOnExec(nfd)
	remote, port, convErr := addr.FromSockaddr(sa)
	if convErr != nil {
		remote, port = addr.Address{}, 0
	}
	return nfd, remote, port, nil
}

func sysRead(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func sysWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func sysSendTo(fd int, p []byte, a addr.Address, port uint16) (int, error) {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return 0, err
	}
	if err := unix.Sendto(fd, p, 0, sa); err != nil {
		return 0, err
	}
	return len(p), nil
}

func sysRecvFrom(fd int, p []byte) (int, addr.Address, uint16, error) {
	n, sa, err := unix.Recvfrom(fd, p, 0)
	if err != nil {
		return 0, addr.Address{}, 0, err
	}
	from, port, convErr := addr.FromSockaddr(sa)
	if convErr != nil {
		from, port = addr.Address{}, 0
	}
	return n, from, port, nil
}

func sysShutdown(fd int, how How) error {
	var sysHow int
	switch how {
	case ShutRead:
		sysHow = unix.SHUT_RD
	case ShutWrite:
		sysHow = unix.SHUT_WR
	default:
		sysHow = unix.SHUT_RDWR
	}
	return unix.Shutdown(fd, sysHow)
}

// sysSocketError drains the pending socket error (SO_ERROR).
func sysSocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func sysLocalName(fd int) (addr.Address, uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return addr.Address{}, 0, err
	}
	return addr.FromSockaddr(sa)
}

func sysPeerName(fd int) (addr.Address, uint16, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return addr.Address{}, 0, err
	}
	return addr.FromSockaddr(sa)
}

func maxBacklog() int { return unix.SOMAXCONN }

// isWouldBlock recognizes the transient no-progress condition.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// isAcceptAborted recognizes a queued handshake the peer tore down
// before it was dequeued, or an interrupted accept. Either way the
// next accept attempt proceeds as if this one never happened.
func isAcceptAborted(err error) bool {
	return errors.Is(err, unix.ECONNABORTED) || errors.Is(err, unix.EINTR)
}

// isAcceptOverload recognizes descriptor or buffer exhaustion on
// accept. The listening socket itself is healthy; the pending
// connection stays queued until resources free up.
func isAcceptOverload(err error) bool {
	return errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) || errors.Is(err, unix.ENOMEM)
}

// isInProgress recognizes a non-blocking connect that has been issued
// and will complete asynchronously.
func isInProgress(err error) bool {
	return errors.Is(err, unix.EINPROGRESS) || errors.Is(err, unix.EALREADY) ||
		errors.Is(err, unix.EINTR)
}
