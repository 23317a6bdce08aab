// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package rowstore

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func tryLock(fh *os.File) error {
	for {
		err := unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB) //nolint:gosec // fd fits in int
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return errLockHeld
		default:
			return err //nolint:wrapcheck // lockPath attaches the store code
		}
	}
}

func unlock(fh *os.File) error {
	return unix.Flock(int(fh.Fd()), unix.LOCK_UN) //nolint:wrapcheck,gosec // best effort
}
