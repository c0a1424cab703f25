package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireUserLock attempts to acquire the per-user operation lock. Returns
// true if the lock was acquired, false if another request holds it. The
// database row locks remain the correctness guarantee; this lock only sheds
// duplicate taps before they open a transaction.
func (s *LockStore) AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:user:%s", userID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseUserLock releases the lock for the given user.
func (s *LockStore) ReleaseUserLock(ctx context.Context, userID string) error {
	key := fmt.Sprintf("lock:user:%s", userID)

	return s.client.Del(ctx, key).Err()
}
