package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates access to a project across several processes.
type DistributedLocker interface {
	// Lock acquires the lock for key (usually a project id). It blocks until the
	// lock is held or ctx is done. The returned UnlockFunc MUST be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
