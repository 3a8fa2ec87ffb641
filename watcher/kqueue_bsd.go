//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// File: watcher/kqueue_bsd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/api"
)

const kqueueBatch = 128

// KqueueWatcher is the BSD/Darwin backend. Read and write interest
// map to separate EVFILT_READ/EVFILT_WRITE registrations; filters are
// level-triggered (no EV_CLEAR), matching the select and poll
// backends. Exceptional-condition interest has no kqueue filter here
// and is ignored.
type KqueueWatcher struct {
	kq       int
	interest map[int]api.EventMask
}

// NewKqueue creates a kqueue instance.
func NewKqueue() (*KqueueWatcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	return &KqueueWatcher{kq: kq, interest: make(map[int]api.EventMask)}, nil
}

// applyDelta issues the kevent changes that move fd from mask old to
// mask next.
func (w *KqueueWatcher) applyDelta(fd int, old, next api.EventMask) error {
	var changes []unix.Kevent_t
	change := func(filter, flags int) {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, filter, flags)
		changes = append(changes, kev)
	}
	if old&api.EventRead == 0 && next&api.EventRead != 0 {
		change(unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	}
	if old&api.EventRead != 0 && next&api.EventRead == 0 {
		change(unix.EVFILT_READ, unix.EV_DELETE)
	}
	if old&api.EventWrite == 0 && next&api.EventWrite != 0 {
		change(unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	}
	if old&api.EventWrite != 0 && next&api.EventWrite == 0 {
		change(unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(w.kq, changes, nil, nil); err != nil {
		return os.NewSyscallError("kevent", err)
	}
	return nil
}

// Interest reports the registered mask for fd.
func (w *KqueueWatcher) Interest(fd int) api.EventMask { return w.interest[fd] }

// Register adds fd with the given mask.
func (w *KqueueWatcher) Register(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if _, ok := w.interest[fd]; ok {
		return api.BlockingUnchanged, api.ErrAlreadyRegistered
	}
	if err := w.applyDelta(fd, 0, mask); err != nil {
		return api.BlockingUnchanged, err
	}
	w.interest[fd] = mask
	return api.BlockingUnchanged, nil
}

// Modify replaces fd's mask; unknown descriptors are a no-op.
func (w *KqueueWatcher) Modify(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	old, ok := w.interest[fd]
	if !ok {
		return api.BlockingUnchanged, nil
	}
	if err := w.applyDelta(fd, old, mask); err != nil {
		return api.BlockingUnchanged, err
	}
	w.interest[fd] = mask
	return api.BlockingUnchanged, nil
}

// Unregister removes fd; unknown descriptors are a no-op.
func (w *KqueueWatcher) Unregister(fd int) error {
	old, ok := w.interest[fd]
	if !ok {
		return nil
	}
	delete(w.interest, fd)
	if err := w.applyDelta(fd, old, 0); err != nil {
		// The descriptor may already be gone; close removes kevents.
		if !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
			return err
		}
	}
	return nil
}

// UnregisterClosed forgets fd after close; closing a descriptor
// removes its kevents, so no change list is issued.
func (w *KqueueWatcher) UnregisterClosed(fd int) error {
	delete(w.interest, fd)
	return nil
}

// Clear unregisters every descriptor.
func (w *KqueueWatcher) Clear() error {
	for fd := range w.interest {
		if err := w.Unregister(fd); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the kqueue descriptor.
func (w *KqueueWatcher) Close() error {
	w.interest = nil
	return unix.Close(w.kq)
}

// Poll waits for kevents and coalesces per-filter results so each
// ready descriptor is emitted exactly once per call.
func (w *KqueueWatcher) Poll(timeoutUS int64, emit api.EmitFunc) error {
	if w.interest == nil {
		return api.ErrWatcherClosed
	}
	if timeoutUS < 0 {
		armed := false
		for _, mask := range w.interest {
			if mask&api.InterestMask != 0 {
				armed = true
				break
			}
		}
		if !armed {
			// A cleared mask carries no kevents, so nothing in the
			// queue could ever wake an infinite wait.
			return api.ErrTimedOut
		}
	}
	var ts *unix.Timespec
	if timeoutUS >= 0 {
		t := unix.NsecToTimespec(timeoutUS * 1000)
		ts = &t
	}
	var events [kqueueBatch]unix.Kevent_t
	n, err := unix.Kevent(w.kq, nil, events[:], ts)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.ErrTimedOut
		}
		return api.NewFailure(api.FailureSystem, os.NewSyscallError("kevent", err))
	}
	if n == 0 {
		return api.ErrTimedOut
	}

	// One kevent arrives per filter; fold read and write results for
	// the same descriptor into a single portable event.
	fds := make([]int, 0, n)
	masks := make(map[int]api.EventMask, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		var ev api.EventMask
		switch events[i].Filter {
		case unix.EVFILT_READ:
			ev |= api.EventRead
		case unix.EVFILT_WRITE:
			ev |= api.EventWrite
		}
		if events[i].Flags&unix.EV_EOF != 0 {
			ev |= api.EventHangup
		}
		if events[i].Flags&unix.EV_ERROR != 0 {
			ev |= api.EventError
		}
		if _, seen := masks[fd]; !seen {
			fds = append(fds, fd)
		}
		masks[fd] |= ev
	}
	for _, fd := range fds {
		mask, ok := w.interest[fd]
		if !ok {
			continue // unregistered by an earlier emit in this batch
		}
		deliver := masks[fd]&mask | masks[fd]&(api.EventError|api.EventHangup)
		if deliver != 0 {
			emit(fd, deliver)
		}
	}
	return nil
}
