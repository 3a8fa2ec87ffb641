// File: protocol/httpserver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/pool"
	"github.com/momentics/sockmux/server"
	"github.com/momentics/sockmux/socket"
)

// Handler produces the response for a parsed request head. Returning
// nil yields a plain 404.
type Handler func(req *RequestHead) *Response

// HTTPServerSocket is the accepted-connection protocol endpoint. It
// collects the request head, invokes the handler once the head is
// complete, and half-closes the write side only after the encoded
// response has fully drained from the outbound queue.
type HTTPServerSocket struct {
	sock    *socket.Socket
	parser  RequestParser
	handler Handler

	responded bool
	shutdown  bool
	bufs      *pool.BytePool
}

// NewHTTPServerSocket wraps an accepted socket. bufs supplies the
// per-event read buffers, normally the reactor's own pool
// (Server.BufferPool); nil gets a private pool.
func NewHTTPServerSocket(s *socket.Socket, handler Handler, bufs *pool.BytePool) *HTTPServerSocket {
	if bufs == nil {
		bufs = pool.NewBytePool(4096)
	}
	return &HTTPServerSocket{sock: s, handler: handler, bufs: bufs}
}

// Sock exposes the owned socket.
func (h *HTTPServerSocket) Sock() *socket.Socket { return h.sock }

// ReadyRead feeds inbound bytes to the request parser. Bytes arriving
// after the response was produced are request-body payload and are
// discarded. End-of-stream propagates so the reactor tears the
// connection down.
func (h *HTTPServerSocket) ReadyRead() error {
	buf := h.bufs.GetBuffer()
	defer h.bufs.PutBuffer(buf)
	n, err := h.sock.Read(buf)
	if err != nil {
		return err
	}
	if n == 0 || h.responded {
		return nil
	}
	_, done, perr := h.parser.Feed(buf[:n])
	if perr != nil {
		return api.NewFailure(api.FailureProtocol, perr)
	}
	if !done {
		return nil
	}
	resp := (*Response)(nil)
	if h.handler != nil {
		resp = h.handler(h.parser.Head())
	}
	if resp == nil {
		resp = &Response{Code: 404}
	}
	if _, err := h.sock.Write(resp.Encode()); err != nil {
		return err
	}
	h.responded = true
	return nil
}

// ReadyWrite half-closes the write side once the response has left the
// outbound queue.
func (h *HTTPServerSocket) ReadyWrite() error {
	if !h.responded || h.shutdown || h.sock.PendingWrite() {
		return nil
	}
	h.shutdown = true
	return h.sock.Shutdown(socket.ShutWrite)
}

// HandleError is a no-op; the reactor already disposes of the socket.
func (h *HTTPServerSocket) HandleError(err error) {}

// HTTPListener accepts connections and wraps each one in an
// HTTPServerSocket sharing a single handler.
type HTTPListener struct {
	sock    *socket.Socket
	handler Handler
	bufs    *pool.BytePool
}

// ListenHTTP binds and listens on the given address in non-blocking
// mode, ready to be passed to server.Serve. Every accepted endpoint
// reads through bufs, normally the serving reactor's pool
// (Server.BufferPool); nil gets a pool shared by this listener's
// connections.
func ListenHTTP(a addr.Address, port uint16, handler Handler, bufs *pool.BytePool) (*HTTPListener, error) {
	if bufs == nil {
		bufs = pool.NewBytePool(4096)
	}
	s := socket.New()
	s.SetBlocking(false)
	if err := s.Bind(a, port); err != nil {
		return nil, err
	}
	if err := s.Listen(0); err != nil {
		s.Disconnect()
		return nil, err
	}
	return &HTTPListener{sock: s, handler: handler, bufs: bufs}, nil
}

// Sock exposes the listening socket.
func (h *HTTPListener) Sock() *socket.Socket { return h.sock }

// NewConn adopts an accepted socket, forcing it non-blocking so the
// reactor never stalls on a slow peer.
func (h *HTTPListener) NewConn(accepted *socket.Socket) server.Conn {
	accepted.SetBlocking(false)
	return NewHTTPServerSocket(accepted, h.handler, h.bufs)
}

// ReadyRead is never invoked for listening sockets; the reactor
// routes their readiness to the accept path.
func (h *HTTPListener) ReadyRead() error { return nil }

// ReadyWrite is never invoked for listening sockets.
func (h *HTTPListener) ReadyWrite() error { return nil }

// HandleError is a no-op.
func (h *HTTPListener) HandleError(err error) {}

// Close releases the listening socket.
func (h *HTTPListener) Close() { h.sock.Disconnect() }
