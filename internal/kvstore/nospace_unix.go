//go:build !windows

package kvstore

import (
	"errors"
	"syscall"
)

// isNoSpace reports a full disk or an exhausted user quota.
func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}
