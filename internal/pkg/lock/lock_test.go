package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
)

func newRedisLocker(t *testing.T, cfg RedisConfig) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocker(client, uid.NewRandomToken(16), cfg), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	l, mr := newRedisLocker(t, RedisConfig{Wait: 50 * time.Millisecond, Interval: 10 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:user:1"))

	_, err = l.Lock(ctx, "user:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Lock(ctx, "user:2")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, mr.Exists("lock:user:1"))

	again, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newRedisLocker(t, RedisConfig{TTL: time.Second, Wait: 20 * time.Millisecond, Interval: 10 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Lock(ctx, "challenge:x")
	require.NoError(t, err)

	// our lease runs out and another holder takes the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:challenge:x", "someone-else"))

	release()
	got, err := mr.Get("lock:challenge:x")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	l, _ := newRedisLocker(t, RedisConfig{Wait: time.Second, Interval: 5 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	second, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)
	second()
}

func TestLocalSerializes(t *testing.T) {
	l := NewLocal()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "k")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, l.slots)
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()

	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
