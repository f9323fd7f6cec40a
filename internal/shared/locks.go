package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LedgerLockKey builds lock keys for a counterparty ledger scope.
// Postings and closings for the same (business unit, counterparty) pair
// serialize on this key; different scopes proceed in parallel.
func LedgerLockKey(bizUnit, counterparty string) string {
	return fmt.Sprintf("ledger:%s:%s:lock", bizUnit, counterparty)
}

// ErrLockHeld indicates the scope lock could not be acquired in time.
var ErrLockHeld = errors.New("shared: scope lock held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ScopeLock is a Redis-backed exclusive lock for long-running critical
// sections such as period closing. Short read-compute-write sections inside a
// database transaction use advisory locks instead.
type ScopeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScopeLock constructs a ScopeLock with the given lease TTL.
func NewScopeLock(client *redis.Client, ttl time.Duration) *ScopeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ScopeLock{client: client, ttl: ttl}
}

// Acquire takes the lock, retrying briefly before giving up with ErrLockHeld.
// The returned release function is safe to call once, regardless of outcome.
func (l *ScopeLock) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("shared: acquire lock: %w", err)
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return nil, ErrLockHeld
}
