//go:build windows

// File: watcher/asyncselect_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import (
	"golang.org/x/sys/windows"

	"github.com/momentics/sockmux/api"
)

// WinSock network-event bits delivered through the window message.
const (
	fdRead    = 0x01
	fdWrite   = 0x02
	fdOOB     = 0x04
	fdAccept  = 0x08
	fdConnect = 0x10
	fdClose   = 0x20
)

var procWSAAsyncSelect = windows.NewLazySystemDLL("ws2_32.dll").NewProc("WSAAsyncSelect")

// AsyncSelectWatcher is the Windows message-pump backend. The kernel
// posts readiness notifications into the message queue of the host
// window; the owner forwards each one to MessageReceived. There is no
// Poll: this backend is driven entirely by the message loop, and
// every watched socket is forced non-blocking, which WSAAsyncSelect
// itself imposes on registration.
type AsyncSelectWatcher struct {
	hwnd     uintptr
	msg      uint32
	interest map[int]api.EventMask
}

// NewAsyncSelect binds the backend to the window handle and message
// number the kernel should post events with.
func NewAsyncSelect(hwnd uintptr, msg uint32) *AsyncSelectWatcher {
	return &AsyncSelectWatcher{
		hwnd:     hwnd,
		msg:      msg,
		interest: make(map[int]api.EventMask),
	}
}

// toWinEvents translates the portable interest mask. Connect
// completion and peer close are always armed: both surface as
// portable events (Write and Hangup) regardless of interest.
func toWinEvents(mask api.EventMask) int32 {
	ev := int32(fdConnect | fdClose)
	if mask&api.EventRead != 0 {
		ev |= fdRead | fdAccept
	}
	if mask&api.EventWrite != 0 {
		ev |= fdWrite
	}
	if mask&api.EventExcept != 0 {
		ev |= fdOOB
	}
	return ev
}

func (w *AsyncSelectWatcher) arm(fd int, mask api.EventMask) error {
	r, _, e := procWSAAsyncSelect.Call(uintptr(fd), w.hwnd,
		uintptr(w.msg), uintptr(toWinEvents(mask)))
	if r != 0 {
		return e
	}
	return nil
}

// Interest reports the registered mask for fd.
func (w *AsyncSelectWatcher) Interest(fd int) api.EventMask { return w.interest[fd] }

// Register arms event notification for fd and forces it non-blocking.
func (w *AsyncSelectWatcher) Register(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if _, ok := w.interest[fd]; ok {
		return api.BlockingUnchanged, api.ErrAlreadyRegistered
	}
	if err := w.arm(fd, mask); err != nil {
		return api.BlockingUnchanged, err
	}
	w.interest[fd] = mask
	return api.ForceNonBlocking, nil
}

// Modify rearms fd with the new mask; unknown descriptors are a
// no-op.
func (w *AsyncSelectWatcher) Modify(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if _, ok := w.interest[fd]; !ok {
		return api.ForceNonBlocking, nil
	}
	if err := w.arm(fd, mask); err != nil {
		return api.ForceNonBlocking, err
	}
	w.interest[fd] = mask
	return api.ForceNonBlocking, nil
}

// Unregister cancels notification for fd.
func (w *AsyncSelectWatcher) Unregister(fd int) error {
	if _, ok := w.interest[fd]; !ok {
		return nil
	}
	delete(w.interest, fd)
	r, _, e := procWSAAsyncSelect.Call(uintptr(fd), w.hwnd, 0, 0)
	if r != 0 {
		return e
	}
	return nil
}

// UnregisterClosed forgets fd after closesocket, which already
// cancelled the notification registration.
func (w *AsyncSelectWatcher) UnregisterClosed(fd int) error {
	delete(w.interest, fd)
	return nil
}

// Clear unregisters every descriptor.
func (w *AsyncSelectWatcher) Clear() error {
	for fd := range w.interest {
		if err := w.Unregister(fd); err != nil {
			return err
		}
	}
	return nil
}

// Close drops local state; the window handle belongs to the host.
func (w *AsyncSelectWatcher) Close() error {
	w.interest = nil
	return nil
}

// Poll is not available on a message-pump backend; the host message
// loop delivers readiness through MessageReceived instead.
func (w *AsyncSelectWatcher) Poll(timeoutUS int64, emit api.EmitFunc) error {
	return api.ErrNotSupported
}

// MessageReceived translates one posted network-event message and
// emits it. The host calls it with the socket from wParam and the
// event/error words unpacked from lParam.
func (w *AsyncSelectWatcher) MessageReceived(fd int, winEvents uint32, errCode int, emit api.EmitFunc) {
	if w.interest == nil {
		return
	}
	mask, ok := w.interest[fd]
	if !ok {
		return
	}
	var ev api.EventMask
	if winEvents&(fdRead|fdAccept) != 0 {
		ev |= api.EventRead
	}
	if winEvents&(fdWrite|fdConnect) != 0 {
		ev |= api.EventWrite
	}
	if winEvents&fdOOB != 0 {
		ev |= api.EventExcept
	}
	deliver := ev & mask
	if winEvents&fdClose != 0 {
		deliver |= api.EventHangup
	}
	if errCode != 0 {
		deliver |= api.EventError
	}
	if winEvents&fdConnect != 0 {
		// Connect completion is reported even without write interest.
		deliver |= api.EventWrite
	}
	if deliver != 0 {
		emit(fd, deliver)
	}
}
