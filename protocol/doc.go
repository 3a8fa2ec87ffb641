// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package protocol implements HTTP/1.x request and response framing
// on top of the socket and server packages: an ordered
// case-insensitive header list, a request writer with chunked
// pull-source bodies, incremental head parsers that accept arbitrary
// byte chunking, and the client/server protocol endpoints the reactor
// drives.
package protocol
