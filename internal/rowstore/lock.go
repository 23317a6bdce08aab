// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package rowstore

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// lockPollInterval is how often a blocked writer retries the lock.
const lockPollInterval = 10 * time.Millisecond

// errLockHeld is returned by tryLock when another process holds the lock.
var errLockHeld = errors.New("lock held by another process")

// lockPath takes an exclusive advisory lock on path, creating it if needed,
// and waits for other holders until ctx is done. The returned func releases it.
func lockPath(ctx context.Context, path string) (func(), error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // sibling of the configured data file
	if err != nil {
		return nil, oops.Code("ROWSTORE_LOCK_FAILED").With("path", path).Wrap(err)
	}

	err = retry.Do(ctx, retry.NewConstant(lockPollInterval), func(context.Context) error {
		if err := tryLock(fh); err != nil {
			if errors.Is(err, errLockHeld) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		_ = fh.Close() //nolint:errcheck // lock error takes precedence
		return nil, oops.Code("ROWSTORE_LOCK_FAILED").With("path", path).Wrap(err)
	}

	return func() {
		_ = unlock(fh) //nolint:errcheck // closing the handle drops the lock too
		_ = fh.Close() //nolint:errcheck // nothing was written
	}, nil
}
