//go:build !windows

// File: watcher/select_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/api"
)

// SelectWatcher is the level-triggered select(2) backend: three
// descriptor bitsets bounded by FD_SETSIZE, with the highest watched
// descriptor tracked for a tight nfds argument. Not safe for use from
// more than one thread.
type SelectWatcher struct {
	interest map[int]api.EventMask
}

// NewSelect creates an empty select backend.
func NewSelect() *SelectWatcher {
	return &SelectWatcher{interest: make(map[int]api.EventMask)}
}

// Interest reports the registered mask for fd.
func (w *SelectWatcher) Interest(fd int) api.EventMask { return w.interest[fd] }

// Register adds fd. Descriptors at or beyond FD_SETSIZE cannot be
// represented in an fd_set and fail with no-buffer-space, leaving the
// watcher unchanged.
func (w *SelectWatcher) Register(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if fd < 0 || fd >= unix.FD_SETSIZE {
		return api.BlockingUnchanged, api.ErrNoBufferSpace
	}
	if _, ok := w.interest[fd]; ok {
		return api.BlockingUnchanged, api.ErrAlreadyRegistered
	}
	w.interest[fd] = mask
	return api.BlockingUnchanged, nil
}

// Modify replaces fd's mask; unknown descriptors are a no-op.
func (w *SelectWatcher) Modify(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if _, ok := w.interest[fd]; ok {
		w.interest[fd] = mask
	}
	return api.BlockingUnchanged, nil
}

// Unregister removes fd; unknown descriptors are a no-op.
func (w *SelectWatcher) Unregister(fd int) error {
	delete(w.interest, fd)
	return nil
}

// UnregisterClosed removes fd after close. select keeps no kernel
// state, so this is identical to Unregister.
func (w *SelectWatcher) UnregisterClosed(fd int) error { return w.Unregister(fd) }

// Clear unregisters every descriptor.
func (w *SelectWatcher) Clear() error {
	w.interest = make(map[int]api.EventMask)
	return nil
}

// Close releases nothing; select holds no kernel object.
func (w *SelectWatcher) Close() error {
	w.interest = nil
	return nil
}

// Poll builds the three bitsets from the interest map, waits, and
// emits one event per ready descriptor. The bitsets are rebuilt every
// call because select(2) overwrites them in place.
func (w *SelectWatcher) Poll(timeoutUS int64, emit api.EmitFunc) error {
	if w.interest == nil {
		return api.ErrWatcherClosed
	}

	var rset, wset, eset unix.FdSet
	maxfd := -1
	for fd, mask := range w.interest {
		if mask&api.EventRead != 0 {
			rset.Set(fd)
		}
		if mask&api.EventWrite != 0 {
			wset.Set(fd)
		}
		if mask&api.EventExcept != 0 {
			eset.Set(fd)
		}
		if mask&api.InterestMask != 0 && fd > maxfd {
			maxfd = fd
		}
	}
	if maxfd < 0 && timeoutUS < 0 {
		// No armed bit anywhere, not even on a registered descriptor
		// whose mask was cleared; an infinite wait would never return.
		return api.ErrTimedOut
	}

	var tv *unix.Timeval
	if timeoutUS >= 0 {
		t := unix.NsecToTimeval(timeoutUS * 1000)
		tv = &t
	}
	_, err := unix.Select(maxfd+1, &rset, &wset, &eset, tv)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.ErrTimedOut
		}
		return api.NewFailure(api.FailureSystem, os.NewSyscallError("select", err))
	}

	// Snapshot before dispatch: emit may mutate the interest map.
	type ready struct {
		fd int
		ev api.EventMask
	}
	var batch []ready
	for fd := 0; fd <= maxfd; fd++ {
		var ev api.EventMask
		if rset.IsSet(fd) {
			ev |= api.EventRead
		}
		if wset.IsSet(fd) {
			ev |= api.EventWrite
		}
		if eset.IsSet(fd) {
			ev |= api.EventExcept
		}
		if ev != 0 {
			batch = append(batch, ready{fd, ev})
		}
	}
	if len(batch) == 0 {
		return api.ErrTimedOut
	}
	for _, r := range batch {
		mask, ok := w.interest[r.fd]
		if !ok {
			continue // unregistered by an earlier emit in this batch
		}
		if ev := r.ev & mask; ev != 0 {
			emit(r.fd, ev)
		}
	}
	return nil
}
