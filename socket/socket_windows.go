//go:build windows

// File: socket/socket_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WinSock descriptor operations behind the platform-neutral Socket
// surface. Functions ws2_32 does not export through x/sys/windows
// (accept, ioctlsocket) are reached via lazy procs, the same way the
// zero-copy path reaches AcceptEx.

package socket

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/sockmux/addr"
)

var (
	modws2_32       = windows.NewLazySystemDLL("ws2_32.dll")
	procAccept      = modws2_32.NewProc("accept")
	procIoctlsocket = modws2_32.NewProc("ioctlsocket")
)

const fionbio = 0x8004667e

func sysSocket(family addr.Family, typ Type) (int, error) {
	af := windows.AF_INET
	if family == addr.FamilyIPv6 {
		af = windows.AF_INET6
	}
	st := windows.SOCK_STREAM
	proto := windows.IPPROTO_TCP
	if typ == Datagram {
		st = windows.SOCK_DGRAM
		proto = windows.IPPROTO_UDP
	}
	h, err := windows.Socket(af, st, proto)
	if err != nil {
		return invalidFD, err
	}
	return int(h), nil
}

func sysClose(fd int) error { return windows.Closesocket(windows.Handle(fd)) }

func sysSetNonblock(fd int, nonblocking bool) error {
	arg := uint32(0)
	if nonblocking {
		arg = 1
	}
	r, _, e := procIoctlsocket.Call(uintptr(fd), fionbio, uintptr(unsafe.Pointer(&arg)))
	if r != 0 {
		return e
	}
	return nil
}

func sysReuseAddr(fd int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}

func sysBind(fd int, a addr.Address, port uint16) error {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return err
	}
	return windows.Bind(windows.Handle(fd), sa)
}

func sysListen(fd, backlog int) error {
	return windows.Listen(windows.Handle(fd), backlog)
}

func sysConnect(fd int, a addr.Address, port uint16) error {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return err
	}
	return windows.Connect(windows.Handle(fd), sa)
}

func sysAccept(fd int) (int, addr.Address, uint16, error) {
	var raw windows.RawSockaddrAny
	size := int32(unsafe.Sizeof(raw))
	r, _, e := procAccept.Call(uintptr(fd),
		uintptr(unsafe.Pointer(&raw)), uintptr(unsafe.Pointer(&size)))
	nfd := windows.Handle(r)
	if nfd == windows.InvalidHandle {
		return invalidFD, addr.Address{}, 0, e
	}
	sa, err := raw.Sockaddr()
	if err != nil {
		return int(nfd), addr.Address{}, 0, nil
	}
	remote, port, convErr := addr.FromSockaddr(sa)
	if convErr != nil {
		remote, port = addr.Address{}, 0
	}
	return int(nfd), remote, port, nil
}

func sysRead(fd int, p []byte) (int, error) {
	buf := windows.WSABuf{Len: uint32(len(p))}
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var n, flags uint32
	err := windows.WSARecv(windows.Handle(fd), &buf, 1, &n, &flags, nil, nil)
	return int(n), err
}

func sysWrite(fd int, p []byte) (int, error) {
	buf := windows.WSABuf{Len: uint32(len(p))}
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var n uint32
	err := windows.WSASend(windows.Handle(fd), &buf, 1, &n, 0, nil, nil)
	return int(n), err
}

func sysSendTo(fd int, p []byte, a addr.Address, port uint16) (int, error) {
	sa, err := a.Sockaddr(port)
	if err != nil {
		return 0, err
	}
	if err := windows.Sendto(windows.Handle(fd), p, 0, sa); err != nil {
		return 0, err
	}
	return len(p), nil
}

func sysRecvFrom(fd int, p []byte) (int, addr.Address, uint16, error) {
	n, sa, err := windows.Recvfrom(windows.Handle(fd), p, 0)
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
		sysHow = windows.SHUT_RD
	case ShutWrite:
		sysHow = windows.SHUT_WR
	default:
		sysHow = windows.SHUT_RDWR
	}
	return windows.Shutdown(windows.Handle(fd), sysHow)
}

// sysSocketError drains the pending socket error (SO_ERROR).
func sysSocketError(fd int) error {
	v, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return windows.Errno(v)
	}
	return nil
}

func sysLocalName(fd int) (addr.Address, uint16, error) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return addr.Address{}, 0, err
	}
	return addr.FromSockaddr(sa)
}

func sysPeerName(fd int) (addr.Address, uint16, error) {
	sa, err := windows.Getpeername(windows.Handle(fd))
	if err != nil {
		return addr.Address{}, 0, err
	}
	return addr.FromSockaddr(sa)
}

func maxBacklog() int { return windows.SOMAXCONN }

// isWouldBlock recognizes the transient no-progress condition.
func isWouldBlock(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK)
}

// isAcceptAborted recognizes a queued handshake the peer tore down
// before it was dequeued. WinSock reports it as WSAECONNRESET on the
// accept call; the next attempt proceeds as if it never happened.
func isAcceptAborted(err error) bool {
	return errors.Is(err, windows.WSAECONNRESET) || errors.Is(err, windows.WSAEINTR)
}

// isAcceptOverload recognizes descriptor or buffer exhaustion on
// accept. The listening socket itself is healthy; the pending
// connection stays queued until resources free up.
func isAcceptOverload(err error) bool {
	return errors.Is(err, windows.WSAEMFILE) || errors.Is(err, windows.WSAENOBUFS)
}

// isInProgress recognizes a non-blocking connect that has been issued
// and will complete asynchronously. WinSock reports it as
// WSAEWOULDBLOCK on the connect call itself.
func isInProgress(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK) || errors.Is(err, windows.WSAEINPROGRESS) ||
		errors.Is(err, windows.WSAEALREADY)
}
