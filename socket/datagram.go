// File: socket/datagram.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"os"

	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
)

// SendTo transmits one datagram to the given peer. The address must
// already be a concrete IP variant. Opens the descriptor on first use.
func (s *Socket) SendTo(p []byte, a addr.Address, port uint16) (int, error) {
	if s.typ != Datagram {
		return 0, api.ErrInvalidState
	}
	if err := s.ensure(a.Family()); err != nil {
		return 0, err
	}
	n, err := sysSendTo(s.fd, p, a, port)
	if err != nil {
		if isWouldBlock(err) {
			return 0, nil
		}
		return 0, s.fatal(os.NewSyscallError("sendto", err))
	}
	return n, nil
}

// RecvFrom receives one datagram and reports its source. On a
// non-blocking socket with nothing pending it returns (0, zero, 0,
// nil).
func (s *Socket) RecvFrom(p []byte) (int, addr.Address, uint16, error) {
	if s.typ != Datagram || s.fd == invalidFD {
		return 0, addr.Address{}, 0, api.ErrInvalidState
	}
	n, from, port, err := sysRecvFrom(s.fd, p)
	if err != nil {
		if isWouldBlock(err) {
			return 0, addr.Address{}, 0, nil
		}
		return 0, addr.Address{}, 0, s.fatal(os.NewSyscallError("recvfrom", err))
	}
	return n, from, port, nil
}
