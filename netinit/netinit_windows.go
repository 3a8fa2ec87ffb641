//go:build windows

// File: netinit/netinit_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netinit

import "golang.org/x/sys/windows"

// platformUp performs the one-shot WinSock 2.2 startup.
func platformUp() error {
	var data windows.WSAData
	return windows.WSAStartup(uint32(0x202), &data)
}

// platformDown tears WinSock down once the last guard is gone.
func platformDown() {
	_ = windows.WSACleanup()
}
