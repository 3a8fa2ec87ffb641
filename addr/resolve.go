// File: addr/resolve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package addr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ResolveCode classifies a resolver failure.
type ResolveCode int

const (
	ResolveTryAgain ResolveCode = iota
	ResolveNoName
	ResolveNoData
	ResolveService
	ResolveMemory
	ResolveGeneric
)

// String names the code.
func (c ResolveCode) String() string {
	switch c {
	case ResolveTryAgain:
		return "try-again"
	case ResolveNoName:
		return "no-name"
	case ResolveNoData:
		return "no-data"
	case ResolveService:
		return "service"
	case ResolveMemory:
		return "memory"
	}
	return "generic"
}

// ResolveError wraps a system resolver failure with its class.
type ResolveError struct {
	Code ResolveCode
	Err  error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve (%s): %v", e.Code, e.Err)
}

// Unwrap exposes the system resolver error.
func (e *ResolveError) Unwrap() error { return e.Err }

// classifyResolve maps a net resolver error onto the taxonomy.
func classifyResolve(err error) *ResolveError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return &ResolveError{Code: ResolveNoName, Err: err}
		case dnsErr.IsTimeout, dnsErr.IsTemporary:
			return &ResolveError{Code: ResolveTryAgain, Err: err}
		}
	}
	return &ResolveError{Code: ResolveGeneric, Err: err}
}

// Resolve expands the address into concrete IP addresses of the
// requested family (FamilyUnspec accepts both). IP variants resolve
// to themselves; the unspecified variant resolves to the per-family
// wildcard. "No data" comes back as an empty list with a nil error;
// every other resolver failure is a *ResolveError.
func (a Address) Resolve(ctx context.Context, family Family) ([]Address, error) {
	if family == FamilyUnspec {
		family = a.Family()
	}
	switch a.Kind() {
	case KindIPv4, KindIPv6:
		if !familyMatches(a, family) {
			return nil, nil
		}
		return []Address{a}, nil
	case KindUnspecified:
		if family == FamilyUnspec {
			// Passive sockets default to IPv4 when nothing narrows
			// the family.
			family = FamilyIPv4
		}
		return []Address{Unspecified(family)}, nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, a.name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, classifyResolve(err)
	}
	out := make([]Address, 0, len(ips))
	for _, ip := range ips {
		na, ok := fromNetIP(ip.IP)
		if !ok {
			continue
		}
		if familyMatches(na, family) {
			out = append(out, na)
		}
	}
	return out, nil
}

func familyMatches(a Address, f Family) bool {
	return f == FamilyUnspec || a.Family() == f
}

func fromNetIP(ip net.IP) (Address, bool) {
	if v4 := ip.To4(); v4 != nil {
		var b [4]byte
		copy(b[:], v4)
		return FromIP(netip.AddrFrom4(b)), true
	}
	if v6 := ip.To16(); v6 != nil {
		var b [16]byte
		copy(b[:], v6)
		return FromIP(netip.AddrFrom16(b)), true
	}
	return Address{}, false
}
