// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// Response assembles an outgoing HTTP response.
type Response struct {
	Major  uint8
	Minor  uint8
	Code   uint16
	Reason string
	Header Header
	Body   []byte
}

// reasonFor supplies the default reason phrase for common codes.
func reasonFor(code uint16) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	}
	return "Unknown"
}

// Encode renders the full response: status line, headers with a
// recomputed Content-Length, blank line, body.
func (r *Response) Encode() []byte {
	major, minor := r.Major, r.Minor
	if major == 0 {
		major, minor = 1, 1
	}
	code := r.Code
	if code == 0 {
		code = 200
	}
	reason := r.Reason
	if reason == "" {
		reason = reasonFor(code)
	}
	out := Header{}
	r.Header.Each(func(k, v string) { out.Set(k, v) })
	out.Set("Content-Length", strconv.Itoa(len(r.Body)))

	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/%d.%d %03d %s\r\n", major, minor, code, reason)
	out.writeTo(&b)
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}
