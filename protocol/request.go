// File: protocol/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ChunkSource pulls the next body chunk for a streamed request body.
// A nil or empty return means the source is exhausted.
type ChunkSource func() []byte

// Request assembles an outgoing HTTP request. Either Body or Source
// may be set, not both; a Source selects chunked transfer encoding
// with one chunk emitted per pull.
type Request struct {
	Method string
	URL    *url.URL
	Major  uint8
	Minor  uint8
	Header Header
	Body   []byte
	Source ChunkSource
}

// EncodeHead renders the request line and headers, including the
// framing headers the writer owns: Host is derived from the URL, and
// any caller-provided Host, Content-Length, or Transfer-Encoding is
// stripped and recomputed.
func (r *Request) EncodeHead() ([]byte, error) {
	if r.URL == nil {
		return nil, badMessage("request has no URL")
	}
	method := r.Method
	if method == "" {
		method = "GET"
	}
	major, minor := r.Major, r.Minor
	if major == 0 {
		major, minor = 1, 1
	}
	target := r.URL.RequestURI()
	if target == "" {
		target = "/"
	}

	clean := Header{}
	r.Header.Each(func(k, v string) {
		switch {
		case strings.EqualFold(k, "Host"),
			strings.EqualFold(k, "Content-Length"),
			strings.EqualFold(k, "Transfer-Encoding"):
			// Recomputed by the writer.
		default:
			clean.Set(k, v)
		}
	})
	out := Header{}
	out.Set("Host", r.URL.Host)
	clean.Each(func(k, v string) { out.Set(k, v) })
	switch {
	case r.Source != nil:
		out.Set("Transfer-Encoding", "chunked")
	case len(r.Body) > 0:
		out.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/%d.%d\r\n", method, target, major, minor)
	out.writeTo(&b)
	b.WriteString("\r\n")
	return b.Bytes(), nil
}

// EncodeChunk frames one body chunk: hex length, CRLF, data, CRLF.
func EncodeChunk(data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%x\r\n", len(data))
	b.Write(data)
	b.WriteString("\r\n")
	return b.Bytes()
}

// lastChunk terminates a chunked body.
var lastChunk = []byte("0\r\n\r\n")
