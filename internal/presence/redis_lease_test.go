package presence

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLeases(t *testing.T) (*RedisLeaseManager, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	m := NewRedisLeaseManager(client, 10*time.Millisecond)
	t.Cleanup(m.Close)
	return m, srv
}

func TestRedisLeases(t *testing.T) {
	t.Run("fires once the ttl elapses", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		var fired atomic.Bool
		m.Arm("1:1", 50*time.Millisecond, func() { fired.Store(true) })
		srv.FastForward(60 * time.Millisecond)
		assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	})

	t.Run("fires at most once", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		var fired atomic.Int32
		m.Arm("1:1", 20*time.Millisecond, func() { fired.Add(1) })
		srv.FastForward(30 * time.Millisecond)
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("renew restarts the ttl", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		var fired atomic.Bool
		m.Arm("1:1", 100*time.Millisecond, func() { fired.Store(true) })
		srv.FastForward(60 * time.Millisecond)
		require.True(t, m.Renew("1:1"))
		srv.FastForward(60 * time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.False(t, fired.Load(), "renewed lease must outlive the original ttl")
		srv.FastForward(60 * time.Millisecond)
		assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	})

	t.Run("renew of an unknown key reports false", func(t *testing.T) {
		m, _ := newTestRedisLeases(t)
		assert.False(t, m.Renew("9:9"))
	})

	t.Run("cancelled lease never fires", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		var fired atomic.Bool
		m.Arm("1:1", 20*time.Millisecond, func() { fired.Store(true) })
		m.Cancel("1:1")
		srv.FastForward(50 * time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.False(t, fired.Load())
		assert.False(t, m.Renew("1:1"))
	})

	t.Run("lease left by a previous run fires the orphan handler", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		var mu sync.Mutex
		var got []string
		m.SetOrphanHandler(func(key string) {
			mu.Lock()
			got = append(got, key)
			mu.Unlock()
		})
		// A registry entry whose lease key already expired, as a crash
		// leaves behind.
		_, err := srv.SetAdd(redisLeaseIndex, "7:3")
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1 && got[0] == "7:3"
		}, time.Second, 5*time.Millisecond)
		// Handed off exactly once; the registry entry is gone.
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, got, 1)
	})

	t.Run("orphan without a handler waits for one", func(t *testing.T) {
		m, srv := newTestRedisLeases(t)
		_, err := srv.SetAdd(redisLeaseIndex, "7:3")
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		var fired atomic.Bool
		m.SetOrphanHandler(func(string) { fired.Store(true) })
		assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	})
}
