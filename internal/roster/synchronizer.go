package roster

import (
	"strings"
	"sync"

	"nearme/internal/directory"
	"nearme/internal/models"
	"nearme/internal/presence"
)

// Entry is one row of the roster a viewer sees: a directory profile annotated
// with live presence. Derived, never stored.
type Entry struct {
	Profile  models.User `json:"profile"`
	IsOnline bool        `json:"is_online"`
}

// Build composes a roster from its three inputs: directory snapshot, online
// set and search query. The viewer is excluded, the query matches name as a
// case-insensitive substring (empty matches all), and ordering follows the
// directory snapshot so presence flips never reorder the list.
func Build(profiles []models.User, viewerID uint, online map[uint]bool, query string) []Entry {
	q := strings.ToLower(query)
	entries := make([]Entry, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == viewerID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		entries = append(entries, Entry{Profile: p, IsOnline: online[p.ID]})
	}
	return entries
}

// Synchronizer maintains one viewer's roster incrementally. It recomputes on
// every directory snapshot, online-set change or query edit and hands the full
// result to onChange. Until the first directory snapshot arrives the roster is
// empty, not an error; that transition is one-way.
type Synchronizer struct {
	viewerID uint

	mu       sync.Mutex
	profiles []models.User
	ready    bool
	online   map[uint]bool
	query    string
	current  []Entry

	outMu    sync.Mutex
	closed   bool
	onChange func([]Entry)

	dirSub  *directory.Subscription
	presSub *presence.Subscription
}

func NewSynchronizer(viewerID uint, onChange func([]Entry)) *Synchronizer {
	return &Synchronizer{
		viewerID: viewerID,
		online:   make(map[uint]bool),
		onChange: onChange,
	}
}

// Attach subscribes the synchronizer to its two live inputs.
func (s *Synchronizer) Attach(store *directory.Store, tracker *presence.Tracker) {
	s.dirSub = store.Subscribe(s.SetDirectory)
	s.presSub = tracker.Subscribe(s.SetOnline)
}

// Close tears both subscriptions down; once it returns onChange is never
// invoked again.
func (s *Synchronizer) Close() {
	if s.dirSub != nil {
		s.dirSub.Unsubscribe()
	}
	if s.presSub != nil {
		s.presSub.Unsubscribe()
	}
	s.outMu.Lock()
	s.closed = true
	s.outMu.Unlock()
}

// SetDirectory replaces the directory snapshot (most recent wins).
func (s *Synchronizer) SetDirectory(profiles []models.User) {
	s.mu.Lock()
	s.profiles = profiles
	s.ready = true
	entries := s.recompute()
	s.mu.Unlock()
	s.emit(entries)
}

// SetOnline replaces the online-user set.
func (s *Synchronizer) SetOnline(online map[uint]bool) {
	s.mu.Lock()
	s.online = online
	if !s.ready {
		s.mu.Unlock()
		return
	}
	entries := s.recompute()
	s.mu.Unlock()
	s.emit(entries)
}

// SetQuery updates the active search text.
func (s *Synchronizer) SetQuery(text string) {
	s.mu.Lock()
	s.query = text
	if !s.ready {
		s.mu.Unlock()
		return
	}
	entries := s.recompute()
	s.mu.Unlock()
	s.emit(entries)
}

// Current returns the latest roster; empty until the first directory snapshot.
func (s *Synchronizer) Current() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.current))
	copy(out, s.current)
	return out
}

// recompute must be called with s.mu held.
func (s *Synchronizer) recompute() []Entry {
	s.current = Build(s.profiles, s.viewerID, s.online, s.query)
	out := make([]Entry, len(s.current))
	copy(out, s.current)
	return out
}

func (s *Synchronizer) emit(entries []Entry) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.closed || s.onChange == nil {
		return
	}
	s.onChange(entries)
}
