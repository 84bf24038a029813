package presence

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLeaseManager(t *testing.T) {
	t.Run("fires after ttl", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		var fired atomic.Bool
		m.Arm("k", 20*time.Millisecond, func() { fired.Store(true) })
		assert.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	})

	t.Run("renew pushes expiry out", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		var fired atomic.Bool
		m.Arm("k", 50*time.Millisecond, func() { fired.Store(true) })
		for i := 0; i < 4; i++ {
			time.Sleep(20 * time.Millisecond)
			assert.True(t, m.Renew("k"))
		}
		assert.False(t, fired.Load())
	})

	t.Run("cancel prevents firing", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		var fired atomic.Bool
		m.Arm("k", 20*time.Millisecond, func() { fired.Store(true) })
		m.Cancel("k")
		time.Sleep(60 * time.Millisecond)
		assert.False(t, fired.Load())
	})

	t.Run("renew after cancel reports not armed", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		m.Arm("k", time.Minute, func() {})
		m.Cancel("k")
		assert.False(t, m.Renew("k"))
	})

	t.Run("rearm replaces the previous lease", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		var first, second atomic.Bool
		m.Arm("k", 20*time.Millisecond, func() { first.Store(true) })
		m.Arm("k", 20*time.Millisecond, func() { second.Store(true) })
		assert.Eventually(t, second.Load, time.Second, 5*time.Millisecond)
		assert.False(t, first.Load())
	})

	t.Run("fires at most once", func(t *testing.T) {
		m := NewMemoryLeaseManager()
		var count atomic.Int32
		m.Arm("k", 10*time.Millisecond, func() { count.Add(1) })
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), count.Load())
		// Renew on an expired lease reports not armed.
		assert.False(t, m.Renew("k"))
	})
}
