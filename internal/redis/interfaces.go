package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	ReleaseUserLock(ctx context.Context, userID string) error
}

// Ensure concrete types implement interfaces.
var _ LockStoreInterface = (*LockStore)(nil)
