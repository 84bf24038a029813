package directory

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearme/internal/models"
)

// countingSource serves a different list on every call.
type countingSource struct {
	gen atomic.Uint64
}

func (c *countingSource) ListAll() ([]models.User, error) {
	n := c.gen.Add(1)
	return []models.User{{ID: 1, Name: strconv.FormatUint(n, 10)}}, nil
}

// fakeSource serves a swappable profile list.
type fakeSource struct {
	mu    sync.Mutex
	users []models.User
	err   error
}

func (f *fakeSource) ListAll() ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeSource) set(users []models.User) {
	f.mu.Lock()
	f.users = users
	f.mu.Unlock()
}

func TestStoreSnapshot(t *testing.T) {
	t.Run("not ready before first refresh", func(t *testing.T) {
		s := NewStore(&fakeSource{})
		_, ready := s.Snapshot()
		assert.False(t, ready)
	})

	t.Run("ready after refresh, even when empty", func(t *testing.T) {
		s := NewStore(&fakeSource{})
		require.NoError(t, s.Refresh())
		users, ready := s.Snapshot()
		assert.True(t, ready)
		assert.Empty(t, users)
	})

	t.Run("refresh error keeps previous snapshot", func(t *testing.T) {
		src := &fakeSource{users: []models.User{{ID: 1, Name: "Anna"}}}
		s := NewStore(src)
		require.NoError(t, s.Refresh())
		src.mu.Lock()
		src.err = errors.New("db down")
		src.mu.Unlock()
		assert.Error(t, s.Refresh())
		users, ready := s.Snapshot()
		assert.True(t, ready)
		require.Len(t, users, 1)
		assert.Equal(t, "Anna", users[0].Name)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		src := &fakeSource{users: []models.User{{ID: 1, Name: "Anna"}}}
		s := NewStore(src)
		require.NoError(t, s.Refresh())
		users, _ := s.Snapshot()
		users[0].Name = "mutated"
		again, _ := s.Snapshot()
		assert.Equal(t, "Anna", again[0].Name)
	})
}

func TestStoreSubscribe(t *testing.T) {
	t.Run("delivers current snapshot immediately when ready", func(t *testing.T) {
		src := &fakeSource{users: []models.User{{ID: 1, Name: "Anna"}}}
		s := NewStore(src)
		require.NoError(t, s.Refresh())
		var got []models.User
		sub := s.Subscribe(func(users []models.User) { got = users })
		defer sub.Unsubscribe()
		require.Len(t, got, 1)
		assert.Equal(t, "Anna", got[0].Name)
	})

	t.Run("no immediate delivery before first snapshot", func(t *testing.T) {
		s := NewStore(&fakeSource{})
		calls := 0
		sub := s.Subscribe(func([]models.User) { calls++ })
		defer sub.Unsubscribe()
		assert.Zero(t, calls)
	})

	t.Run("pushes full snapshot on every change", func(t *testing.T) {
		src := &fakeSource{users: []models.User{{ID: 1, Name: "Anna"}}}
		s := NewStore(src)
		var mu sync.Mutex
		var got [][]models.User
		sub := s.Subscribe(func(users []models.User) {
			mu.Lock()
			got = append(got, users)
			mu.Unlock()
		})
		defer sub.Unsubscribe()
		require.NoError(t, s.Refresh())
		src.set([]models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}})
		require.NoError(t, s.Refresh())
		// A removed profile disappears from the next snapshot.
		src.set([]models.User{{ID: 2, Name: "Bob"}})
		require.NoError(t, s.Refresh())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, got, 3)
		assert.Len(t, got[0], 1)
		assert.Len(t, got[1], 2)
		require.Len(t, got[2], 1)
		assert.Equal(t, uint(2), got[2][0].ID)
	})

	t.Run("no delivery after unsubscribe", func(t *testing.T) {
		src := &fakeSource{}
		s := NewStore(src)
		calls := 0
		sub := s.Subscribe(func([]models.User) { calls++ })
		sub.Unsubscribe()
		require.NoError(t, s.Refresh())
		assert.Zero(t, calls)
	})

	t.Run("concurrent refreshes converge on the newest snapshot", func(t *testing.T) {
		src := &countingSource{}
		s := NewStore(src)
		var mu sync.Mutex
		var last []models.User
		sub := s.Subscribe(func(users []models.User) {
			mu.Lock()
			last = users
			mu.Unlock()
		})
		defer sub.Unsubscribe()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					assert.NoError(t, s.Refresh())
				}
			}()
		}
		wg.Wait()

		snap, ready := s.Snapshot()
		require.True(t, ready)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, snap, last, "final delivery must match the final snapshot")
	})

	t.Run("each subscriber gets its own copy", func(t *testing.T) {
		src := &fakeSource{users: []models.User{{ID: 1, Name: "Anna"}}}
		s := NewStore(src)
		var a, b []models.User
		subA := s.Subscribe(func(users []models.User) { a = users })
		subB := s.Subscribe(func(users []models.User) { b = users })
		defer subA.Unsubscribe()
		defer subB.Unsubscribe()
		require.NoError(t, s.Refresh())
		a[0].Name = "mutated"
		assert.Equal(t, "Anna", b[0].Name)
	})
}
