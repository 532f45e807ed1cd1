// Package lock hands out exclusive named locks, in process or through Redis.
// The allocation engine has no transactional primitive on the shared grid, so
// allocations run under one of these.
package lock

import "context"

// Release frees a held lock. Calling it more than once is safe.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// A ctx expiry is reported as errs.ErrLockTimeout.
	Acquire(ctx context.Context, key string) (Release, error)
}
