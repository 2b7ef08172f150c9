package lock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "rentbill:lock:overdue_sweep", Key(" overdue_sweep "))
}

func TestNilLocker(t *testing.T) {
	var locker *RedisLocker
	assert.Nil(t, NewRedisLocker(nil))

	_, ok, err := locker.TryLock(context.Background(), Key("job"), time.Second)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, ok)
	assert.NoError(t, locker.Release(context.Background(), Key("job"), "token"))
}

func TestTryLockValidatesInput(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client)

	_, _, err := locker.TryLock(context.Background(), " ", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, _, err = locker.TryLock(context.Background(), Key("job"), 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	assert.NoError(t, locker.Release(context.Background(), "", "token"))
	assert.NoError(t, locker.Release(context.Background(), Key("job"), ""))
}

func TestTryLockSurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	_, ok, err := NewRedisLocker(client).TryLock(context.Background(), Key("job"), time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
