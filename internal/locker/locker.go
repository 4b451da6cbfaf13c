// Package locker provides the exclusive per-wallet lock taken around every
// balance mutation.
package locker

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks by key. Lock blocks until the lock is
// held or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func WalletKey(userID int64) string {
	return fmt.Sprintf("wallet:%d", userID)
}
