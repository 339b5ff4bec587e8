package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes Resolve and Reply for one session across replicas,
// so two of them never stage against the same pending choice.
type DistributedLocker interface {
	// Lock blocks until the session's lock is held or ctx is done.
	// The lock expires after ttl if the holder never calls the returned UnlockFunc.
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (UnlockFunc, error)
}
