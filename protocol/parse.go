// File: protocol/parse.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental HTTP/1.x head parsing. The collector accepts arbitrary
// byte chunking and stops consuming exactly at the blank line; body
// bytes are never swallowed. Delimiting and parsing the head is all
// this file does: body framing is the caller's concern.

package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/momentics/sockmux/api"
)

// maxHeadBytes bounds the header region a peer can make us buffer.
const maxHeadBytes = 64 * 1024

var crlfcrlf = []byte("\r\n\r\n")

func badMessage(detail string) error {
	return fmt.Errorf("%w: %s", api.ErrBadMessage, detail)
}

// ResponseHead is a parsed response line plus headers.
type ResponseHead struct {
	Major  uint8
	Minor  uint8
	Code   uint16
	Reason string
	Header Header
}

// RequestHead is a parsed request line plus headers.
type RequestHead struct {
	Method string
	Target string
	Major  uint8
	Minor  uint8
	Header Header
}

// headCollector accumulates bytes until the header terminator.
type headCollector struct {
	buf  []byte
	done bool
}

// feed appends bytes from p. It returns how many bytes of p belong to
// the head (up to and including the terminating blank line) and
// whether the head is now complete; the remainder of p is body data
// the caller keeps.
func (c *headCollector) feed(p []byte) (int, bool, error) {
	if c.done {
		return 0, true, nil
	}
	// The terminator may straddle the previous chunk boundary.
	scanFrom := len(c.buf) - (len(crlfcrlf) - 1)
	if scanFrom < 0 {
		scanFrom = 0
	}
	c.buf = append(c.buf, p...)
	if i := bytes.Index(c.buf[scanFrom:], crlfcrlf); i >= 0 {
		end := scanFrom + i + len(crlfcrlf)
		overshoot := len(c.buf) - end
		c.buf = c.buf[:end]
		c.done = true
		return len(p) - overshoot, true, nil
	}
	if len(c.buf) > maxHeadBytes {
		return len(p), false, badMessage("header region too large")
	}
	return len(p), false, nil
}

// parseVersion consumes "HTTP/MAJ.MIN" at the start of s and returns
// the remainder.
func parseVersion(s string) (major, minor uint8, rest string, err error) {
	const lit = "HTTP/"
	if !strings.HasPrefix(s, lit) {
		return 0, 0, "", badMessage("missing HTTP/ literal")
	}
	s = s[len(lit):]
	maj, s, err := parseDigits(s)
	if err != nil {
		return 0, 0, "", err
	}
	if len(s) == 0 || s[0] != '.' {
		return 0, 0, "", badMessage("malformed version")
	}
	min, s, err := parseDigits(s[1:])
	if err != nil {
		return 0, 0, "", err
	}
	return maj, min, s, nil
}

// parseDigits consumes a run of decimal digits that must fit a byte.
func parseDigits(s string) (uint8, string, error) {
	var n, i int
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		if n > 255 {
			return 0, "", badMessage("version component out of range")
		}
		i++
	}
	if i == 0 {
		return 0, "", badMessage("expected digits")
	}
	return uint8(n), s[i:], nil
}

// parseResponseHead parses a complete head region: status line, then
// headers, per the strict grammar. Any deviation is a bad message.
func parseResponseHead(head []byte) (*ResponseHead, error) {
	lines := strings.Split(strings.TrimSuffix(string(head), "\r\n\r\n"), "\r\n")
	if len(lines) == 0 {
		return nil, badMessage("empty head")
	}
	r := &ResponseHead{}
	s := lines[0]
	var err error
	if r.Major, r.Minor, s, err = parseVersion(s); err != nil {
		return nil, err
	}
	s, ok := skipSpaces(s)
	if !ok {
		return nil, badMessage("missing space after version")
	}
	if len(s) < 3 {
		return nil, badMessage("truncated status code")
	}
	code := 0
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, badMessage("non-digit status code")
		}
		code = code*10 + int(s[i]-'0')
	}
	r.Code = uint16(code)
	s = s[3:]
	if s != "" {
		if s, ok = skipSpaces(s); !ok {
			return nil, badMessage("garbage after status code")
		}
	}
	r.Reason = s
	if err := parseHeaderLines(lines[1:], &r.Header); err != nil {
		return nil, err
	}
	return r, nil
}

// parseRequestHead parses "METHOD SP TARGET SP HTTP/MAJ.MIN" plus
// headers.
func parseRequestHead(head []byte) (*RequestHead, error) {
	lines := strings.Split(strings.TrimSuffix(string(head), "\r\n\r\n"), "\r\n")
	if len(lines) == 0 {
		return nil, badMessage("empty head")
	}
	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, badMessage("malformed request line")
	}
	r := &RequestHead{Method: parts[0], Target: parts[1]}
	var err error
	var rest string
	if r.Major, r.Minor, rest, err = parseVersion(parts[2]); err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, badMessage("garbage after version")
	}
	if err := parseHeaderLines(lines[1:], &r.Header); err != nil {
		return nil, err
	}
	return r, nil
}

// parseHeaderLines fills h from "key: value" lines, trimming leading
// whitespace in values. Duplicate keys follow last-write-wins.
func parseHeaderLines(lines []string, h *Header) error {
	for _, line := range lines {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return badMessage("malformed header line")
		}
		key := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")
		h.Set(key, value)
	}
	return nil
}

// skipSpaces consumes at least one space.
func skipSpaces(s string) (string, bool) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return s[i:], i > 0
}
