//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// File: watcher/default_bsd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import "github.com/momentics/sockmux/api"

// NewDefault returns the preferred backend for BSD-family systems.
func NewDefault() (api.Watcher, error) { return NewKqueue() }
