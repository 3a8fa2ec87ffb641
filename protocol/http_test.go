// File: protocol/http_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Full request/response exchanges over loopback through the reactor.

package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/netinit"
	"github.com/momentics/sockmux/protocol"
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

// pump drives the reactor from the test goroutine until done signals
// or the deadline passes.
func pump(t *testing.T, srv *server.Server, done <-chan error) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("client: %v", err)
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("exchange stalled")
		}
		if err := srv.PollOnce(10_000); err != nil && !errors.Is(err, api.ErrTimedOut) {
			t.Fatalf("poll: %v", err)
		}
	}
}

func TestServeRequestResponse(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()

	var seen *protocol.RequestHead
	l, err := protocol.ListenHTTP(addr.V4Loopback(), 0, func(req *protocol.RequestHead) *protocol.Response {
		seen = req
		return &protocol.Response{Code: 200, Body: []byte("hello " + req.Target)}
	}, srv.BufferPool())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	_, port, err := l.Sock().LocalAddress()
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		client := socket.New()
		defer client.Disconnect()
		if err := client.Connect(addr.V4Loopback(), port); err != nil {
			done <- err
			return
		}
		if _, err := client.Write([]byte("GET /greet HTTP/1.1\r\nHost: test\r\n\r\n")); err != nil {
			done <- err
			return
		}
		// The endpoint half-closes after the response drains, so
		// reading to EOF collects the complete exchange.
		var raw bytes.Buffer
		buf := make([]byte, 4096)
		for {
			n, err := client.Read(buf)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				done <- err
				return
			}
			raw.Write(buf[:n])
		}
		var p protocol.ResponseParser
		n, ok, err := p.Feed(raw.Bytes())
		if err != nil || !ok {
			done <- errors.New("response head did not parse")
			return
		}
		if p.Head().Code != 200 {
			done <- errors.New("unexpected status")
			return
		}
		if body := raw.String()[n:]; body != "hello /greet" {
			done <- errors.New("unexpected body " + body)
			return
		}
		done <- nil
	}()

	pump(t, srv, done)
	if seen == nil || seen.Method != "GET" || seen.Target != "/greet" {
		t.Fatalf("handler saw %+v", seen)
	}
	if seen.Header.Get("host") != "test" {
		t.Fatalf("host header = %q", seen.Header.Get("host"))
	}
}

func TestMalformedRequestTearsDown(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()

	l, err := protocol.ListenHTTP(addr.V4Loopback(), 0, func(req *protocol.RequestHead) *protocol.Response {
		return &protocol.Response{}
	}, srv.BufferPool())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	_, port, _ := l.Sock().LocalAddress()
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		client := socket.New()
		defer client.Disconnect()
		if err := client.Connect(addr.V4Loopback(), port); err != nil {
			done <- err
			return
		}
		if _, err := client.Write([]byte("NOT A REQUEST LINE\r\n\r\n")); err != nil {
			done <- err
			return
		}
		// The endpoint is torn down without a response.
		buf := make([]byte, 256)
		for {
			_, err := client.Read(buf)
			if err != nil {
				done <- nil
				return
			}
		}
	}()
	pump(t, srv, done)
}

func TestClientAgainstServedEndpoint(t *testing.T) {
	srv, err := server.New(server.WithWatcher(watcher.NewPoll()))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Watcher().Close()

	l, err := protocol.ListenHTTP(addr.V4Loopback(), 0, func(req *protocol.RequestHead) *protocol.Response {
		if req.Header.Get("transfer-encoding") != "chunked" {
			return &protocol.Response{Code: 400}
		}
		return &protocol.Response{Code: 200, Body: []byte("ok")}
	}, srv.BufferPool())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	_, port, _ := l.Sock().LocalAddress()
	if err := srv.Serve(l); err != nil {
		t.Fatalf("serve: %v", err)
	}

	sock := socket.New()
	sock.SetBlocking(false)
	if err := sock.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sock.Disconnect()

	// A three-pull chunked body: one chunk per write-readiness event.
	chunks := [][]byte{[]byte("AB"), []byte("CD"), nil}
	hs := protocol.NewHTTPSocket(sock, srv.BufferPool())
	done := make(chan error, 1)
	hs.OnResponse(func(head *protocol.ResponseHead, rest []byte) {
		if head.Code != 200 {
			done <- errors.New("unexpected status " + head.Reason)
			return
		}
		done <- nil
	})
	hs.OnError(func(err error) { done <- err })

	target, _ := url.Parse("http://upload.test/data")
	err = hs.SendRequest(&protocol.Request{
		Method: "PUT",
		URL:    target,
		Source: func() []byte {
			next := chunks[0]
			chunks = chunks[1:]
			return next
		},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := srv.Watch(hs); err != nil {
		t.Fatalf("watch: %v", err)
	}
	pump(t, srv, done)
	if len(chunks) != 0 {
		t.Fatalf("source not exhausted, %d chunks left", len(chunks))
	}
}
