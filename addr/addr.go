// File: addr/addr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package addr

import (
	"errors"
	"net/netip"
	"strconv"
)

// Family selects an address family, or leaves it open.
type Family int

const (
	FamilyUnspec Family = iota
	FamilyIPv4
	FamilyIPv6
)

// String names the family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return "unspec"
}

// Kind tags the variant held by an Address.
type Kind int

const (
	KindUnspecified Kind = iota
	KindIPv4
	KindIPv6
	KindHostname
)

var errEmptyAddress = errors.New("addr: empty address and no family")

// Address is a tagged endpoint host. The zero value is the
// unspecified address with no family hint. Addresses are comparable;
// two addresses are equal iff they hold the same variant and value.
type Address struct {
	ip   netip.Addr // valid for the IPv4/IPv6 variants
	name string     // non-empty for the hostname variant
	hint Family     // family hint for unspecified/hostname variants
}

// Parse interprets text as an IPv4 literal, then an IPv6 literal, and
// otherwise stores it as a hostname carrying the family hint. Empty
// text yields the unspecified address of the hinted family, and fails
// when no family is hinted either.
func Parse(text string, hint Family) (Address, error) {
	if text == "" {
		if hint == FamilyUnspec {
			return Address{}, errEmptyAddress
		}
		return Unspecified(hint), nil
	}
	if ip, err := netip.ParseAddr(text); err == nil {
		if ip.Is4() || ip.Is4In6() {
			return Address{ip: ip.Unmap()}, nil
		}
		return Address{ip: ip}, nil
	}
	return Address{name: text, hint: hint}, nil
}

// FromIP wraps a parsed IP literal.
func FromIP(ip netip.Addr) Address {
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	return Address{ip: ip}
}

// Hostname builds the symbolic variant with an optional family hint.
func Hostname(name string, hint Family) Address {
	return Address{name: name, hint: hint}
}

// Unspecified returns the wildcard address of the given family, or
// the untagged unspecified address for FamilyUnspec.
func Unspecified(f Family) Address {
	switch f {
	case FamilyIPv4:
		return Address{ip: netip.IPv4Unspecified()}
	case FamilyIPv6:
		return Address{ip: netip.IPv6Unspecified()}
	}
	return Address{}
}

// Canonical per-family constants.
func V4Any() Address       { return Address{ip: netip.IPv4Unspecified()} }
func V4Loopback() Address  { return Address{ip: netip.AddrFrom4([4]byte{127, 0, 0, 1})} }
func V4Broadcast() Address { return Address{ip: netip.AddrFrom4([4]byte{255, 255, 255, 255})} }
func V6Any() Address       { return Address{ip: netip.IPv6Unspecified()} }
func V6Loopback() Address  { return Address{ip: netip.IPv6Loopback()} }

// Kind reports the variant tag.
func (a Address) Kind() Kind {
	switch {
	case a.name != "":
		return KindHostname
	case !a.ip.IsValid():
		return KindUnspecified
	case a.ip.Is4():
		return KindIPv4
	default:
		return KindIPv6
	}
}

// Family reports the concrete family for IP variants and the hint for
// the others.
func (a Address) Family() Family {
	switch a.Kind() {
	case KindIPv4:
		return FamilyIPv4
	case KindIPv6:
		return FamilyIPv6
	}
	return a.hint
}

// IP exposes the underlying netip.Addr; only valid for IP variants.
func (a Address) IP() netip.Addr { return a.ip }

// HostnameText returns the symbolic name, empty for other variants.
func (a Address) HostnameText() string { return a.name }

// String renders the host without a port. IPv6 uses the RFC 5952
// shortened lowercase form.
func (a Address) String() string {
	if a.name != "" {
		return a.name
	}
	if !a.ip.IsValid() {
		return ""
	}
	return a.ip.String()
}

// WithPort renders host and port, bracket form for IPv6 literals.
func (a Address) WithPort(port uint16) string {
	if a.name == "" && a.ip.IsValid() {
		return netip.AddrPortFrom(a.ip, port).String()
	}
	return a.String() + ":" + strconv.Itoa(int(port))
}

// IsAny reports the per-family wildcard address.
func (a Address) IsAny() bool { return a.ip.IsValid() && a.ip.IsUnspecified() }

// IsLoopback reports 127.0.0.0/8 or ::1.
func (a Address) IsLoopback() bool { return a.ip.IsValid() && a.ip.IsLoopback() }

// IsMulticast reports 224.0.0.0/4 or ff00::/8.
func (a Address) IsMulticast() bool { return a.ip.IsValid() && a.ip.IsMulticast() }

// IsBroadcast reports the IPv4 limited broadcast address. Directed
// broadcast cannot be recognized without the network mask.
func (a Address) IsBroadcast() bool {
	return a.ip.IsValid() && a.ip.Is4() && a.ip == netip.AddrFrom4([4]byte{255, 255, 255, 255})
}
