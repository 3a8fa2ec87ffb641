//go:build windows

// File: watcher/default_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watcher

import "github.com/momentics/sockmux/api"

// NewDefault has no pollable backend on Windows: WSAAsyncSelect needs
// a host window and message loop, so the caller must construct one
// explicitly with NewAsyncSelect.
func NewDefault() (api.Watcher, error) { return nil, api.ErrNotSupported }
