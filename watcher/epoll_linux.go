//go:build linux

// File: watcher/epoll_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/api"
)

const epollBatch = 128

// EpollWatcher is the Linux backend. The interest set lives in the
// kernel; the watcher mirrors each descriptor's mask so Clear can
// enumerate them and an all-disarmed set is detectable before an
// infinite wait. Level-triggered.
type EpollWatcher struct {
	epfd  int
	known map[int]api.EventMask
}

// NewEpoll creates an epoll instance.
func NewEpoll() (*EpollWatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &EpollWatcher{epfd: epfd, known: make(map[int]api.EventMask)}, nil
}

func interestToEpoll(mask api.EventMask) uint32 {
	var ev uint32
	if mask&api.EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&api.EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if mask&api.EventExcept != 0 {
		ev |= unix.EPOLLPRI
	}
	return ev
}

func epollToEvents(ev uint32) api.EventMask {
	var out api.EventMask
	if ev&unix.EPOLLIN != 0 {
		out |= api.EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		out |= api.EventWrite
	}
	if ev&unix.EPOLLPRI != 0 {
		out |= api.EventExcept
	}
	if ev&unix.EPOLLERR != 0 {
		out |= api.EventError
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		out |= api.EventHangup
	}
	return out
}

// Interest is unknown for a kernel-maintained set.
func (w *EpollWatcher) Interest(fd int) api.EventMask { return api.EventNone }

// Register adds fd to the kernel interest set.
func (w *EpollWatcher) Register(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	ev := unix.EpollEvent{Events: interestToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return api.BlockingUnchanged, api.ErrAlreadyRegistered
		}
		return api.BlockingUnchanged, os.NewSyscallError("epoll_ctl", err)
	}
	w.known[fd] = mask
	return api.BlockingUnchanged, nil
}

// Modify replaces fd's mask; a descriptor the kernel does not know is
// a no-op.
func (w *EpollWatcher) Modify(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	ev := unix.EpollEvent{Events: interestToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return api.BlockingUnchanged, nil
		}
		return api.BlockingUnchanged, os.NewSyscallError("epoll_ctl", err)
	}
	w.known[fd] = mask
	return api.BlockingUnchanged, nil
}

// Unregister removes fd; unknown descriptors are a no-op.
func (w *EpollWatcher) Unregister(fd int) error {
	delete(w.known, fd)
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
			return nil
		}
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

// UnregisterClosed forgets fd after close. The kernel already dropped
// the registration when the last reference to the descriptor went
// away, so no epoll_ctl is issued.
func (w *EpollWatcher) UnregisterClosed(fd int) error {
	delete(w.known, fd)
	return nil
}

// Clear unregisters every descriptor this watcher added.
func (w *EpollWatcher) Clear() error {
	for fd := range w.known {
		if err := w.Unregister(fd); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the epoll descriptor.
func (w *EpollWatcher) Close() error {
	w.known = nil
	return unix.Close(w.epfd)
}

// Poll waits for kernel events. epoll reports only ready descriptors,
// so no scan is needed; the returned slice is the snapshot.
func (w *EpollWatcher) Poll(timeoutUS int64, emit api.EmitFunc) error {
	if w.known == nil {
		return api.ErrWatcherClosed
	}
	if timeoutUS < 0 {
		armed := false
		for _, mask := range w.known {
			if mask&api.InterestMask != 0 {
				armed = true
				break
			}
		}
		if !armed {
			// No armed bit anywhere, registered-but-disarmed
			// descriptors included; an infinite wait would never
			// return on its own.
			return api.ErrTimedOut
		}
	}
	var events [epollBatch]unix.EpollEvent
	n, err := unix.EpollWait(w.epfd, events[:], timeoutMillis(timeoutUS))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.ErrTimedOut
		}
		return api.NewFailure(api.FailureSystem, os.NewSyscallError("epoll_wait", err))
	}
	if n == 0 {
		return api.ErrTimedOut
	}
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if _, ok := w.known[fd]; !ok {
			continue // unregistered by an earlier emit in this batch
		}
		if ev := epollToEvents(events[i].Events); ev != 0 {
			emit(fd, ev)
		}
	}
	return nil
}
