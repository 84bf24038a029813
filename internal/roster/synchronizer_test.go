package roster

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearme/internal/directory"
	"nearme/internal/models"
	"nearme/internal/presence"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Profile.Name
	}
	return out
}

func TestBuild(t *testing.T) {
	profiles := []models.User{
		{ID: 1, Name: "Anna"},
		{ID: 2, Name: "Bob"},
		{ID: 3, Name: "Fan"},
	}

	t.Run("excludes the viewer and annotates presence", func(t *testing.T) {
		entries := Build(profiles, 1, map[uint]bool{2: true}, "")
		require.Len(t, entries, 2)
		assert.Equal(t, "Bob", entries[0].Profile.Name)
		assert.True(t, entries[0].IsOnline)
		assert.Equal(t, "Fan", entries[1].Profile.Name)
		assert.False(t, entries[1].IsOnline)
	})

	t.Run("query matches case-insensitive substrings", func(t *testing.T) {
		entries := Build(profiles, 0, nil, "an")
		assert.Equal(t, []string{"Anna", "Fan"}, names(entries))
		entries = Build(profiles, 0, nil, "AN")
		assert.Equal(t, []string{"Anna", "Fan"}, names(entries))
		entries = Build(profiles, 0, nil, "ANNA")
		assert.Equal(t, []string{"Anna"}, names(entries))
	})

	t.Run("empty query matches all", func(t *testing.T) {
		assert.Len(t, Build(profiles, 0, nil, ""), 3)
	})

	t.Run("no match yields empty roster", func(t *testing.T) {
		assert.Empty(t, Build(profiles, 0, nil, "zzz"))
	})

	t.Run("ordering follows the directory snapshot", func(t *testing.T) {
		reordered := []models.User{{ID: 3, Name: "Fan"}, {ID: 1, Name: "Anna"}}
		assert.Equal(t, []string{"Fan", "Anna"}, names(Build(reordered, 0, nil, "")))
	})
}

func TestSynchronizer(t *testing.T) {
	t.Run("empty until first directory snapshot", func(t *testing.T) {
		s := NewSynchronizer(1, nil)
		assert.Empty(t, s.Current())
		s.SetOnline(map[uint]bool{2: true})
		s.SetQuery("bob")
		assert.Empty(t, s.Current())
	})

	t.Run("recomputes on directory snapshot", func(t *testing.T) {
		var got []Entry
		s := NewSynchronizer(1, func(entries []Entry) { got = entries })
		s.SetOnline(map[uint]bool{2: true})
		s.SetDirectory([]models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}})
		require.Len(t, got, 1)
		assert.Equal(t, "Bob", got[0].Profile.Name)
		assert.True(t, got[0].IsOnline)
	})

	t.Run("presence-only updates never reorder the roster", func(t *testing.T) {
		s := NewSynchronizer(0, nil)
		s.SetDirectory([]models.User{
			{ID: 1, Name: "Anna"},
			{ID: 2, Name: "Bob"},
			{ID: 3, Name: "Cleo"},
		})
		before := names(s.Current())
		s.SetOnline(map[uint]bool{3: true})
		s.SetOnline(map[uint]bool{1: true, 2: true})
		s.SetOnline(nil)
		assert.Equal(t, before, names(s.Current()))
	})

	t.Run("directory updates may reorder", func(t *testing.T) {
		s := NewSynchronizer(0, nil)
		s.SetDirectory([]models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}})
		s.SetDirectory([]models.User{{ID: 2, Name: "Bob"}, {ID: 1, Name: "Anna"}})
		assert.Equal(t, []string{"Bob", "Anna"}, names(s.Current()))
	})

	t.Run("removed profile disappears from the roster", func(t *testing.T) {
		s := NewSynchronizer(0, nil)
		s.SetDirectory([]models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}})
		s.SetDirectory([]models.User{{ID: 2, Name: "Bob"}})
		assert.Equal(t, []string{"Bob"}, names(s.Current()))
	})

	t.Run("query edits refilter the existing snapshot", func(t *testing.T) {
		var got []Entry
		s := NewSynchronizer(0, func(entries []Entry) { got = entries })
		s.SetDirectory([]models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}})
		s.SetQuery("an")
		assert.Equal(t, []string{"Anna"}, names(got))
		s.SetQuery("")
		assert.Equal(t, []string{"Anna", "Bob"}, names(got))
	})

	t.Run("attached synchronizer follows live inputs", func(t *testing.T) {
		src := &staticSource{users: []models.User{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Bob"}}}
		store := directory.NewStore(src)
		tracker := presence.NewTracker(time.Minute, presence.NewMemoryLeaseManager(), nil)

		var mu sync.Mutex
		var last []Entry
		s := NewSynchronizer(1, func(entries []Entry) {
			mu.Lock()
			last = entries
			mu.Unlock()
		})
		s.Attach(store, tracker)
		defer s.Close()

		require.NoError(t, store.Refresh())
		mu.Lock()
		require.Equal(t, []string{"Bob"}, names(last))
		assert.False(t, last[0].IsOnline)
		mu.Unlock()

		sess := tracker.Connect(2)
		mu.Lock()
		require.Len(t, last, 1)
		assert.True(t, last[0].IsOnline)
		mu.Unlock()

		tracker.Disconnect(sess)
		mu.Lock()
		assert.False(t, last[0].IsOnline)
		mu.Unlock()
	})

	t.Run("no emission after close", func(t *testing.T) {
		src := &staticSource{users: []models.User{{ID: 2, Name: "Bob"}}}
		store := directory.NewStore(src)
		tracker := presence.NewTracker(time.Minute, presence.NewMemoryLeaseManager(), nil)
		calls := 0
		s := NewSynchronizer(1, func([]Entry) { calls++ })
		s.Attach(store, tracker)
		s.Close()
		before := calls
		require.NoError(t, store.Refresh())
		tracker.Connect(2)
		assert.Equal(t, before, calls)
	})
}

type staticSource struct {
	users []models.User
}

func (s *staticSource) ListAll() ([]models.User, error) {
	return append([]models.User(nil), s.users...), nil
}
