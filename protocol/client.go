// File: protocol/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/pool"
	"github.com/momentics/sockmux/socket"
)

// HTTPSocket is the client-side protocol endpoint: it sends one
// request, pumps a chunked body one chunk per write-readiness event,
// and parses the response head incrementally as bytes arrive.
type HTTPSocket struct {
	sock   *socket.Socket
	parser ResponseParser

	source     ChunkSource
	delivered  bool
	onResponse func(head *ResponseHead, rest []byte)
	onBody     func(data []byte)
	onError    func(err error)

	bufs *pool.BytePool
}

// NewHTTPSocket wraps an existing socket, typically one that is
// connecting or connected. bufs supplies the per-event read buffers,
// normally the reactor's own pool (Server.BufferPool); nil gets a
// private pool.
func NewHTTPSocket(s *socket.Socket, bufs *pool.BytePool) *HTTPSocket {
	if bufs == nil {
		bufs = pool.NewBytePool(4096)
	}
	return &HTTPSocket{sock: s, bufs: bufs}
}

// Sock exposes the owned socket.
func (h *HTTPSocket) Sock() *socket.Socket { return h.sock }

// OnResponse installs the hook invoked once the response head is
// parsed; rest holds any body bytes that arrived with the head.
func (h *HTTPSocket) OnResponse(fn func(head *ResponseHead, rest []byte)) { h.onResponse = fn }

// OnBody installs the hook for body bytes after the head; body
// framing (content-length or chunked) is the caller's concern.
func (h *HTTPSocket) OnBody(fn func(data []byte)) { h.onBody = fn }

// OnError installs the fatal-failure hook.
func (h *HTTPSocket) OnError(fn func(err error)) { h.onError = fn }

// SendRequest enqueues the request head and any fixed body. A request
// with a pull-source leaves the source armed: every subsequent
// write-readiness event emits exactly one chunk until exhausted.
func (h *HTTPSocket) SendRequest(req *Request) error {
	head, err := req.EncodeHead()
	if err != nil {
		return err
	}
	if _, err := h.sock.Write(head); err != nil {
		return err
	}
	if req.Source != nil {
		h.source = req.Source
		return nil
	}
	if len(req.Body) > 0 {
		if _, err := h.sock.Write(req.Body); err != nil {
			return err
		}
	}
	return nil
}

// ReadyWrite pumps the next body chunk once the previously queued
// bytes have fully drained.
func (h *HTTPSocket) ReadyWrite() error {
	if h.source == nil || h.sock.PendingWrite() {
		return nil
	}
	chunk := h.source()
	if len(chunk) == 0 {
		h.source = nil
		_, err := h.sock.Write(lastChunk)
		return err
	}
	_, err := h.sock.Write(EncodeChunk(chunk))
	return err
}

// ReadyRead drains available bytes into the response parser and
// delivers the head, then body bytes, to the installed hooks. The
// slices handed to the hooks alias a pooled buffer and are valid only
// for the duration of the call.
func (h *HTTPSocket) ReadyRead() error {
	buf := h.bufs.GetBuffer()
	defer h.bufs.PutBuffer(buf)
	n, err := h.sock.Read(buf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	data := buf[:n]
	if h.delivered {
		if h.onBody != nil {
			h.onBody(data)
		}
		return nil
	}
	consumed, done, perr := h.parser.Feed(data)
	if perr != nil {
		return api.NewFailure(api.FailureProtocol, perr)
	}
	if done {
		h.delivered = true
		if h.onResponse != nil {
			h.onResponse(h.parser.Head(), data[consumed:])
		}
	}
	return nil
}

// HandleError forwards the classified failure to the hook.
func (h *HTTPSocket) HandleError(err error) {
	if h.onError != nil {
		h.onError(err)
	}
}
