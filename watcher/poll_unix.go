//go:build !windows

// File: watcher/poll_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockmux/api"
)

// PollWatcher is the level-triggered poll(2) backend: a vector of
// (fd, interest, revents) entries with no descriptor ceiling.
// Registration appends; removal swaps with the last entry and pops,
// entry order carries no meaning.
type PollWatcher struct {
	fds   []unix.PollFd
	index map[int]int // fd -> position in fds
}

// NewPoll creates an empty poll backend.
func NewPoll() *PollWatcher {
	return &PollWatcher{index: make(map[int]int)}
}

func interestToPoll(mask api.EventMask) int16 {
	var ev int16
	if mask&api.EventRead != 0 {
		ev |= unix.POLLIN
	}
	if mask&api.EventWrite != 0 {
		ev |= unix.POLLOUT
	}
	if mask&api.EventExcept != 0 {
		ev |= unix.POLLPRI
	}
	return ev
}

func pollToEvents(revents int16) api.EventMask {
	var ev api.EventMask
	if revents&unix.POLLIN != 0 {
		ev |= api.EventRead
	}
	if revents&unix.POLLOUT != 0 {
		ev |= api.EventWrite
	}
	if revents&unix.POLLPRI != 0 {
		ev |= api.EventExcept
	}
	if revents&unix.POLLERR != 0 {
		ev |= api.EventError
	}
	if revents&unix.POLLHUP != 0 {
		ev |= api.EventHangup
	}
	if revents&unix.POLLNVAL != 0 {
		ev |= api.EventInvalid
	}
	return ev
}

// Interest reports the registered mask for fd.
func (w *PollWatcher) Interest(fd int) api.EventMask {
	if i, ok := w.index[fd]; ok {
		var mask api.EventMask
		ev := w.fds[i].Events
		if ev&unix.POLLIN != 0 {
			mask |= api.EventRead
		}
		if ev&unix.POLLOUT != 0 {
			mask |= api.EventWrite
		}
		if ev&unix.POLLPRI != 0 {
			mask |= api.EventExcept
		}
		return mask
	}
	return api.EventNone
}

// Register appends fd with the given mask.
func (w *PollWatcher) Register(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if _, ok := w.index[fd]; ok {
		return api.BlockingUnchanged, api.ErrAlreadyRegistered
	}
	w.index[fd] = len(w.fds)
	w.fds = append(w.fds, unix.PollFd{Fd: int32(fd), Events: interestToPoll(mask)})
	return api.BlockingUnchanged, nil
}

// Modify replaces fd's mask; unknown descriptors are a no-op.
func (w *PollWatcher) Modify(fd int, mask api.EventMask) (api.BlockingAdjustment, error) {
	if err := validateMask(mask); err != nil {
		return api.BlockingUnchanged, err
	}
	if i, ok := w.index[fd]; ok {
		w.fds[i].Events = interestToPoll(mask)
	}
	return api.BlockingUnchanged, nil
}

// Unregister removes fd by swapping it with the last entry.
func (w *PollWatcher) Unregister(fd int) error {
	i, ok := w.index[fd]
	if !ok {
		return nil
	}
	last := len(w.fds) - 1
	if i != last {
		w.fds[i] = w.fds[last]
		w.index[int(w.fds[i].Fd)] = i
	}
	w.fds = w.fds[:last]
	delete(w.index, fd)
	return nil
}

// UnregisterClosed removes fd after close; poll keeps no kernel
// state, so this is identical to Unregister.
func (w *PollWatcher) UnregisterClosed(fd int) error { return w.Unregister(fd) }

// Clear unregisters every descriptor.
func (w *PollWatcher) Clear() error {
	w.fds = w.fds[:0]
	w.index = make(map[int]int)
	return nil
}

// Close releases nothing; poll holds no kernel object.
func (w *PollWatcher) Close() error {
	w.fds = nil
	w.index = nil
	return nil
}

// Poll waits on the vector and dispatches ready entries. Ready
// descriptors are snapshotted before the first emit call, because
// emit may reorder or shrink the vector.
func (w *PollWatcher) Poll(timeoutUS int64, emit api.EmitFunc) error {
	if w.index == nil {
		return api.ErrWatcherClosed
	}
	if timeoutUS < 0 {
		armed := false
		for i := range w.fds {
			if w.fds[i].Events != 0 {
				armed = true
				break
			}
		}
		if !armed {
			// Entries whose masks were cleared still sit in the
			// vector, but none can wake the wait on its own.
			return api.ErrTimedOut
		}
	}
	n, err := unix.Poll(w.fds, timeoutMillis(timeoutUS))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.ErrTimedOut
		}
		return api.NewFailure(api.FailureSystem, os.NewSyscallError("poll", err))
	}
	if n == 0 {
		return api.ErrTimedOut
	}

	type ready struct {
		fd int
		ev api.EventMask
	}
	batch := make([]ready, 0, n)
	for i := range w.fds {
		if w.fds[i].Revents == 0 {
			continue
		}
		ev := pollToEvents(w.fds[i].Revents)
		w.fds[i].Revents = 0
		if ev != 0 {
			batch = append(batch, ready{int(w.fds[i].Fd), ev})
		}
	}
	for _, r := range batch {
		if _, ok := w.index[r.fd]; !ok {
			continue // unregistered by an earlier emit in this batch
		}
		deliver := r.ev&w.Interest(r.fd) | r.ev&(api.EventError|api.EventHangup|api.EventInvalid)
		if deliver != 0 {
			emit(r.fd, deliver)
		}
	}
	return nil
}
