// Package lock provides the short-lived mutual exclusion used by the
// reminder dispatcher so concurrent process runs never double-send the
// same reminder.
package lock

import (
	"context"
	"time"
)

// Locker acquires and releases named leases. Acquire reports false when
// the lease is already held elsewhere; the caller skips the work.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
