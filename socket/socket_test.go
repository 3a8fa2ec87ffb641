// File: socket/socket_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loopback round-trips through the real descriptor layer.

package socket_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/momentics/sockmux/addr"
	"github.com/momentics/sockmux/api"
	"github.com/momentics/sockmux/netinit"
	"github.com/momentics/sockmux/socket"
)

func TestMain(m *testing.M) {
	guard, err := netinit.Acquire()
	if err != nil {
		panic(err)
	}
	code := m.Run()
	guard.Release()
	os.Exit(code)
}

// listenLoopback binds an ephemeral loopback listener and reports its
// port.
func listenLoopback(t *testing.T) (*socket.Socket, uint16) {
	t.Helper()
	ls := socket.New()
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

func TestLifecycleEchoEOF(t *testing.T) {
	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	if ls.State() != socket.Listening {
		t.Fatalf("listener state = %v", ls.State())
	}

	client := socket.New()
	defer client.Disconnect()
	if err := client.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if client.State() != socket.Connected {
		t.Fatalf("client state = %v", client.State())
	}

	accepted, err := ls.Accept()
	if err != nil || accepted == nil {
		t.Fatalf("accept: %v %v", accepted, err)
	}
	defer accepted.Disconnect()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := accepted.Read(buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("read = %q, %v", buf[:n], err)
	}

	if _, _, err := accepted.RemoteAddress(); err != nil {
		t.Fatalf("remote address: %v", err)
	}

	client.Disconnect()
	if client.State() != socket.Unconnected {
		t.Fatalf("state after disconnect = %v", client.State())
	}
	if _, err := accepted.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("read after peer close = %v, want io.EOF", err)
	}
}

func TestNonBlockingAcceptEmpty(t *testing.T) {
	ls, _ := listenLoopback(t)
	defer ls.Disconnect()
	if err := ls.SetBlocking(false); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}
	c, err := ls.Accept()
	if c != nil || err != nil {
		t.Fatalf("accept with nothing pending = %v, %v; want nil, nil", c, err)
	}
}

func TestNonBlockingReadNoData(t *testing.T) {
	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	client := socket.New()
	defer client.Disconnect()
	if err := client.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.SetBlocking(false); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}
	n, err := client.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Fatalf("no-data read = %d, %v; want 0, nil", n, err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	s := socket.New()
	if err := s.Listen(0); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("listen unbound = %v", err)
	}
	if _, err := s.Accept(); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("accept unconnected = %v", err)
	}
	if err := s.ConfirmConnect(); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("confirm unconnected = %v", err)
	}
	if err := s.Shutdown(socket.ShutBoth); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("shutdown unconnected = %v", err)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, api.ErrNoDescriptor) {
		t.Errorf("read without descriptor = %v", err)
	}
}

func TestWriteFlagAndQueueRetention(t *testing.T) {
	ls, port := listenLoopback(t)
	defer ls.Disconnect()
	client := socket.New()
	defer client.Disconnect()
	if err := client.Connect(addr.V4Loopback(), port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	accepted, err := ls.Accept()
	if err != nil || accepted == nil {
		t.Fatalf("accept: %v %v", accepted, err)
	}
	defer accepted.Disconnect()
	if err := client.SetBlocking(false); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}

	if client.ConsumeWriteFlag() {
		t.Fatal("write flag set before any write")
	}
	chunk := make([]byte, 1<<16)
	for i := range chunk {
		chunk[i] = byte(i % 251)
	}
	// The peer is not reading, so the kernel buffers fill and the
	// unwritten tail lands in the outbound queue.
	var sent int
	for i := 0; i < 256 && !client.PendingWrite(); i++ {
		if _, err := client.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		sent += len(chunk)
	}
	if !client.ConsumeWriteFlag() {
		t.Fatal("write flag not set after writes")
	}
	if client.ConsumeWriteFlag() {
		t.Fatal("write flag must clear on consume")
	}
	if !client.PendingWrite() {
		t.Skip("kernel buffers absorbed every write")
	}
	if client.PendingWriteBytes() <= 0 {
		t.Fatal("pending bytes not accounted")
	}

	// Drain: read on the peer while flushing the queue; every byte
	// must arrive once and in order.
	var got bytes.Buffer
	buf := make([]byte, 1<<16)
	deadline := time.Now().Add(10 * time.Second)
	for got.Len() < sent {
		if time.Now().After(deadline) {
			t.Fatalf("drain stalled at %d of %d bytes", got.Len(), sent)
		}
		if client.PendingWrite() {
			if _, err := client.Flush(); err != nil {
				t.Fatalf("flush: %v", err)
			}
		}
		n, err := accepted.Read(buf)
		if err != nil {
			t.Fatalf("drain read: %v", err)
		}
		got.Write(buf[:n])
	}
	for i, b := range got.Bytes() {
		if b != byte(i%(1<<16)%251) {
			t.Fatalf("byte %d out of order: %d", i, b)
		}
	}
	if client.PendingWrite() {
		t.Fatal("queue not empty after full drain")
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	recv := socket.NewTyped(socket.Datagram)
	defer recv.Disconnect()
	if err := recv.Bind(addr.V4Loopback(), 0); err != nil {
		t.Fatalf("bind: %v", err)
	}
	_, port, err := recv.LocalAddress()
	if err != nil {
		t.Fatalf("local address: %v", err)
	}

	send := socket.NewTyped(socket.Datagram)
	defer send.Disconnect()
	if _, err := send.SendTo([]byte("dgram"), addr.V4Loopback(), port); err != nil {
		t.Fatalf("sendto: %v", err)
	}

	buf := make([]byte, 32)
	n, from, _, err := recv.RecvFrom(buf)
	if err != nil || string(buf[:n]) != "dgram" {
		t.Fatalf("recvfrom = %q, %v", buf[:n], err)
	}
	if !from.IsLoopback() {
		t.Fatalf("source = %v, want loopback", from)
	}
}

func TestDetach(t *testing.T) {
	ls, _ := listenLoopback(t)
	fd := ls.Detach()
	if fd < 0 {
		t.Fatal("detach lost the descriptor")
	}
	if ls.State() != socket.Unconnected || ls.FD() >= 0 {
		t.Fatal("socket not terminal after detach")
	}
	// The descriptor now belongs to the test; it is released with the
	// process.
}
