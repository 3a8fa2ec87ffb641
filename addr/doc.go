// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package addr parses, classifies, and renders socket endpoint
// addresses. An Address is one of four variants: unspecified, an IPv4
// address, an IPv6 address, or a symbolic hostname awaiting
// resolution. The textual IP forms round-trip through Parse and
// String; rendering with a port uses bracket form for IPv6.
package addr
