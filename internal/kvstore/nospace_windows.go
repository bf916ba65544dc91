//go:build windows

package kvstore

import (
	"errors"
	"syscall"
)

// Win32 error codes
const (
	errorHandleDiskFull syscall.Errno = 39
	errorDiskFull       syscall.Errno = 112
)

// isNoSpace reports a full disk.
func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, errorDiskFull) ||
		errors.Is(err, errorHandleDiskFull)
}
