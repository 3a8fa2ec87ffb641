//go:build linux

// File: watcher/default_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import "github.com/momentics/sockmux/api"

// NewDefault returns the preferred backend for Linux.
func NewDefault() (api.Watcher, error) { return NewEpoll() }
