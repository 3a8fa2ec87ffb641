// File: protocol/framer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

// ResponseParser incrementally delimits and parses a response head.
// Bytes may arrive in any chunking; the parsed result is identical to
// one-shot delivery.
type ResponseParser struct {
	col  headCollector
	head *ResponseHead
}

// Feed consumes head bytes from p. It reports how many bytes of p
// belonged to the head and whether the head is complete; once
// complete, further bytes in p are body data the caller owns.
func (p *ResponseParser) Feed(b []byte) (int, bool, error) {
	n, done, err := p.col.feed(b)
	if err != nil {
		return n, false, err
	}
	if done && p.head == nil {
		head, perr := parseResponseHead(p.col.buf)
		if perr != nil {
			return n, false, perr
		}
		p.head = head
	}
	return n, done, nil
}

// Head returns the parsed head, nil until Feed reported completion.
func (p *ResponseParser) Head() *ResponseHead { return p.head }

// RequestParser incrementally delimits and parses a request head.
type RequestParser struct {
	col  headCollector
	head *RequestHead
}

// Feed consumes head bytes from b, as in ResponseParser.Feed.
func (p *RequestParser) Feed(b []byte) (int, bool, error) {
	n, done, err := p.col.feed(b)
	if err != nil {
		return n, false, err
	}
	if done && p.head == nil {
		head, perr := parseRequestHead(p.col.buf)
		if perr != nil {
			return n, false, perr
		}
		p.head = head
	}
	return n, done, nil
}

// Head returns the parsed head, nil until Feed reported completion.
func (p *RequestParser) Head() *RequestHead { return p.head }
