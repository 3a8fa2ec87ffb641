//go:build !windows

// File: addr/sockaddr_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package addr

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/api"
)

// Sockaddr converts the address plus port into the native sockaddr
// form. Hostname variants fail: the caller must resolve first.
func (a Address) Sockaddr(port uint16) (unix.Sockaddr, error) {
	switch a.Kind() {
	case KindIPv4:
		return &unix.SockaddrInet4{Port: int(port), Addr: a.ip.As4()}, nil
	case KindIPv6:
		return &unix.SockaddrInet6{Port: int(port), Addr: a.ip.As16()}, nil
	case KindUnspecified:
		if a.hint == FamilyIPv6 {
			return &unix.SockaddrInet6{Port: int(port)}, nil
		}
		return &unix.SockaddrInet4{Port: int(port)}, nil
	}
	return nil, api.ErrNeedResolve
}

// FromSockaddr recovers the portable address and port from a native
// sockaddr produced by accept, getsockname, or getpeername.
func FromSockaddr(sa unix.Sockaddr) (Address, uint16, error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return FromIP(netip.AddrFrom4(s.Addr)), uint16(s.Port), nil
	case *unix.SockaddrInet6:
		ip := netip.AddrFrom16(s.Addr)
		if ip.Is4In6() {
			ip = ip.Unmap()
		}
		return FromIP(ip), uint16(s.Port), nil
	}
	return Address{}, 0, fmt.Errorf("addr: unsupported sockaddr %T", sa)
}
