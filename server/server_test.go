// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor tests against real loopback sockets.

package server_test

import (
	"bytes"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/netinit"
	"github.com/momentics/sockmux/server"
	"github.com/momentics/sockmux/socket"
	"github.com/momentics/sockmux/watcher"
)

func TestMain(m *testing.M) {
	guard, err := netinit.Acquire()
	if err != nil {
		log.Fatalf("netinit: %v", err)
	}
	code := m.Run()
	guard.Release()
	os.Exit(code)
}

// echoConn mirrors inbound bytes.
type echoConn struct {
	sock *socket.Socket
	buf  []byte
}

func (c *echoConn) Sock() *socket.Socket  { return c.sock }
func (c *echoConn) ReadyWrite() error     { return nil }
func (c *echoConn) HandleError(err error) {}

func (c *echoConn) ReadyRead() error {
	for {
		n, err := c.sock.Read(c.buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := c.sock.Write(c.buf[:n]); err != nil {
			return err
		}
	}
}

// testListener adopts accepted sockets as echo connections and
// remembers their descriptors.
type testListener struct {
	sock    *socket.Socket
	factory func(*socket.Socket) server.Conn
	fds     []int
}

func (l *testListener) Sock() *socket.Socket  { return l.sock }
func (l *testListener) ReadyRead() error      { return nil }
func (l *testListener) ReadyWrite() error     { return nil }
func (l *testListener) HandleError(err error) {}

func (l *testListener) NewConn(accepted *socket.Socket) server.Conn {
	accepted.SetBlocking(false)
	l.fds = append(l.fds, accepted.FD())
	return l.factory(accepted)
}

func listenLoopback(t *testing.T) (*socket.Socket, uint16) {
	t.Helper()
	ls := socket.New()
	ls.SetBlocking(false)
	if err := ls.Bind(addr.V4Loopback(), 0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := ls.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, err := ls.LocalAddress()
	if err != nil {
		t.Fatalf("local address: %v", err)
	}
	return ls, port
}

func TestServeRequiresListening(t *testing.T) {
	srv, err := server.New()
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()
	l := &testListener{sock: socket.New()}
	if err := srv.Serve(l); !errors.Is(err, server.ErrNotListening) {
		t.Fatalf("serve unlistening = %v, want ErrNotListening", err)
	}
}

func TestEchoEndToEnd(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()

	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	l := &testListener{sock: ls, factory: func(s *socket.Socket) server.Conn {
		return &echoConn{sock: s, buf: make([]byte, 4096)}
	}}
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}

	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	done := make(chan error, 1)
	go func() {
		client := socket.New()
		defer client.Disconnect()
		if err := client.Connect(addr.V4Loopback(), port); err != nil {
			done <- err
			return
		}
		var got bytes.Buffer
		buf := make([]byte, 1<<16)
		off := 0
		for got.Len() < len(payload) {
			if off < len(payload) {
				n, err := client.Write(payload[off:min(off+1<<16, len(payload))])
				if err != nil {
					done <- err
					return
				}
				off += n
				// Anything the kernel refused sits in the queue.
				off += client.PendingWriteBytes()
				for client.PendingWrite() {
					if _, err := client.Flush(); err != nil {
						done <- err
						return
					}
				}
			}
			n, err := client.Read(buf)
			if err != nil {
				done <- err
				return
			}
			got.Write(buf[:n])
		}
		if !bytes.Equal(got.Bytes(), payload) {
			done <- errors.New("echoed payload differs")
			return
		}
		done <- nil
	}()

	deadline := time.Now().Add(20 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("client: %v", err)
			}
			if srv.Metrics().Get("server.accepted") != 1 {
				t.Fatalf("accepted = %d", srv.Metrics().Get("server.accepted"))
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("echo round-trip stalled")
		}
		if err := srv.PollOnce(10_000); err != nil && !errors.Is(err, api.ErrTimedOut) {
			t.Fatalf("poll: %v", err)
		}
	}
}

// pushConn writes a fixed payload when poked and is silent otherwise.
type pushConn struct {
	sock    *socket.Socket
	payload []byte
	buf     []byte
}

func (c *pushConn) Sock() *socket.Socket  { return c.sock }
func (c *pushConn) ReadyWrite() error     { return nil }
func (c *pushConn) HandleError(err error) {}

func (c *pushConn) ReadyRead() error {
	n, err := c.sock.Read(c.buf)
	if err != nil {
		return err
	}
	if n > 0 && c.payload != nil {
		p := c.payload
		c.payload = nil
		_, err = c.sock.Write(p)
	}
	return err
}

func TestWriteInterestLifecycle(t *testing.T) {
	pw := watcher.NewPoll()
	srv, err := server.New(server.WithWatcher(pw))
	if err != nil {
		t.Fatal(err)
	}
	defer pw.Close()

	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	payload := make([]byte, 4<<20)
	l := &testListener{sock: ls, factory: func(s *socket.Socket) server.Conn {
		return &pushConn{sock: s, payload: payload, buf: make([]byte, 64)}
	}}
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}

	client := socket.New()
	defer client.Disconnect()
	if err := client.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := client.Write([]byte("go")); err != nil {
		t.Fatalf("poke: %v", err)
	}

	// Accept and poke delivery: poll until the push landed in the
	// connection's outbound queue and write interest is armed.
	deadline := time.Now().Add(10 * time.Second)
	armed := false
	for !armed {
		if time.Now().After(deadline) {
			t.Fatal("write interest never armed")
		}
		if err := srv.PollOnce(10_000); err != nil && !errors.Is(err, api.ErrTimedOut) {
			t.Fatalf("poll: %v", err)
		}
		for _, fd := range l.fds {
			if pw.Interest(fd)&api.EventWrite != 0 {
				armed = true
			}
		}
	}

	// Drain from the client while the reactor flushes; once the queue
	// empties, write interest must drop so the loop does not spin on
	// an always-writable descriptor.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		buf := make([]byte, 1<<16)
		total := 0
		for total < len(payload) {
			n, err := client.Read(buf)
			if err != nil {
				return
			}
			total += n
		}
	}()
	cleared := false
	for !cleared {
		if time.Now().After(deadline) {
			t.Fatal("write interest never cleared after drain")
		}
		if err := srv.PollOnce(10_000); err != nil && !errors.Is(err, api.ErrTimedOut) {
			t.Fatalf("poll: %v", err)
		}
		cleared = true
		for _, fd := range l.fds {
			if pw.Interest(fd)&api.EventWrite != 0 {
				cleared = false
			}
		}
	}
	<-drained
}

func TestRunEndsWhenExternalGone(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()

	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	client := socket.New()
	defer client.Disconnect()
	if err := client.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	var accepted *socket.Socket
	for deadline := time.Now().Add(5 * time.Second); accepted == nil; {
		accepted, err = ls.Accept()
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("nothing to accept")
		}
	}

	client.SetBlocking(false)
	if err := srv.Watch(&echoConn{sock: client, buf: make([]byte, 64)}); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Closing the peer surfaces EOF on the watched endpoint, which
	// removes it and empties the external registry.
	accepted.Disconnect()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(10_000) }()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		srv.Cancel()
		t.Fatal("run did not end after the external endpoint left")
	}
	// External endpoints are unregistered, never disconnected: the
	// descriptor still belongs to the test.
	if client.FD() < 0 {
		t.Fatal("reactor closed an externally-owned endpoint")
	}
}

func TestCancelStopsRun(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()
	ls, _ := listenLoopback(t)
	defer ls.Disconnect()
	l := &testListener{sock: ls, factory: func(s *socket.Socket) server.Conn {
		return &echoConn{sock: s, buf: make([]byte, 64)}
	}}
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(10_000) }()
	time.Sleep(50 * time.Millisecond)
	srv.Cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the loop")
	}
}
