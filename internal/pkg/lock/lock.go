// Package lock provides keyed mutual exclusion that spans replicas.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock stays taken for the whole wait budget.
var ErrNotAcquired = errors.New("lock: not acquired")

// Release gives a lock back. It is safe to call more than once.
type Release func()

// Locker acquires exclusive ownership of a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}
