package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sheetvend-api/internal/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:lock", time.Minute, zap.NewNop()), mr
}

func lockers(t *testing.T) map[string]Locker {
	r, _ := newTestRedis(t)
	return map[string]Locker{
		"memory": NewMemory(),
		"redis":  r,
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var (
				wg      sync.WaitGroup
				holders int32
				maxSeen int32
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					release, err := l.Acquire(ctx, "allocate")
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&holders, 1)
					for {
						seen := atomic.LoadInt32(&maxSeen)
						if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&holders, -1)
					release()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxSeen)
		})
	}
}

func TestLocker_TimeoutWhileHeld(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "k")
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			_, err = l.Acquire(ctx, "k")
			require.ErrorIs(t, err, errs.ErrLockTimeout)

			// other keys are independent
			other, err := l.Acquire(context.Background(), "other")
			require.NoError(t, err)
			other()

			release()
			release()

			again, err := l.Acquire(context.Background(), "k")
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedis_ReleaseOnlyDeletesOwnToken(t *testing.T) {
	l, mr := newTestRedis(t)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:k"))

	// the key expired and someone else took it
	mr.Del("test:lock:k")
	require.NoError(t, mr.Set("test:lock:k", "someone-else"))

	release()
	got, err := mr.Get("test:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_KeyExpiresAfterTTL(t *testing.T) {
	l, mr := newTestRedis(t)

	_, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func TestNewRedis_Defaults(t *testing.T) {
	r := NewRedis(nil, "", 0, zap.NewNop())
	assert.Equal(t, DefaultTTL, r.ttl)
	assert.Equal(t, "sheetvend:lock:x", r.lockKey("x"))
}
