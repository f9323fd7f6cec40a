package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func lockClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLedgerLockKey(t *testing.T) {
	require.Equal(t, "ledger:HQ:CP-100:lock", LedgerLockKey("HQ", "CP-100"))
}

func TestScopeLockAcquireAndRelease(t *testing.T) {
	mr, client := lockClient(t)
	lock := NewScopeLock(client, time.Minute)
	key := LedgerLockKey("HQ", "CP-100")

	release, err := lock.Acquire(context.Background(), key)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	release()
	require.False(t, mr.Exists(key))
}

func TestScopeLockContention(t *testing.T) {
	_, client := lockClient(t)
	lock := NewScopeLock(client, time.Minute)
	key := LedgerLockKey("HQ", "CP-100")

	release, err := lock.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	_, err = lock.Acquire(context.Background(), key)
	require.ErrorIs(t, err, ErrLockHeld)
}

func TestScopeLockReleaseIgnoresForeignToken(t *testing.T) {
	mr, client := lockClient(t)
	lock := NewScopeLock(client, time.Minute)
	key := LedgerLockKey("HQ", "CP-100")

	release, err := lock.Acquire(context.Background(), key)
	require.NoError(t, err)

	// Another holder took over after our lease expired.
	require.NoError(t, mr.Set(key, "someone-else"))
	release()
	require.True(t, mr.Exists(key))
	val, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "someone-else", val)
}

func TestScopeLockNilClientIsNoop(t *testing.T) {
	var lock *ScopeLock
	release, err := lock.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()
}
