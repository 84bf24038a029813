package directory

import (
	"log"
	"sync"

	"nearme/internal/models"
)

// Source is where the authoritative profile records live. ListAll must return
// records in insertion order with removed records excluded.
type Source interface {
	ListAll() ([]models.User, error)
}

// Store observes the user directory as a live collection and pushes full
// snapshots to subscribers on every change, in refresh order. Subscribers
// must replace, not merge.
type Store struct {
	source Source

	// refreshMu serializes reload and fan-out so subscribers converge on the
	// newest snapshot instead of whichever notify lost the race.
	refreshMu sync.Mutex

	mu       sync.RWMutex
	snapshot []models.User
	ready    bool

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

func NewStore(source Source) *Store {
	return &Store{source: source, subs: make(map[*Subscription]struct{})}
}

// Refresh reloads the directory from its source and pushes the new snapshot
// to every subscriber. Handlers call it after any profile mutation.
func (s *Store) Refresh() error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	users, err := s.source.ListAll()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = users
	s.ready = true
	s.mu.Unlock()
	s.notify(users)
	return nil
}

// Snapshot returns a copy of the latest directory snapshot. ready is false
// until the first successful Refresh.
func (s *Store) Snapshot() (users []models.User, ready bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, false
	}
	return copyUsers(s.snapshot), true
}

// Subscription is a registered directory listener.
type Subscription struct {
	store  *Store
	mu     sync.Mutex
	closed bool
	cb     func([]models.User)
}

// Subscribe registers cb; if a snapshot has already arrived it is delivered
// immediately. Each delivery is a fresh copy (copy-on-read).
func (s *Store) Subscribe(cb func([]models.User)) *Subscription {
	sub := &Subscription{store: s, cb: cb}
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()
	if users, ready := s.Snapshot(); ready {
		sub.deliver(users)
	}
	return sub
}

// Unsubscribe tears the subscription down; once it returns, cb is never
// invoked again.
func (sub *Subscription) Unsubscribe() {
	sub.store.subMu.Lock()
	delete(sub.store.subs, sub)
	sub.store.subMu.Unlock()
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}

func (sub *Subscription) deliver(users []models.User) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.cb(users)
}

func (s *Store) notify(users []models.User) {
	s.subMu.RLock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.RUnlock()
	for _, sub := range subs {
		sub.deliver(copyUsers(users))
	}
}

// MustRefresh logs instead of failing; used at startup where an empty
// directory is valid until the first successful load.
func (s *Store) MustRefresh() {
	if err := s.Refresh(); err != nil {
		log.Printf("[directory] initial load failed: %v", err)
	}
}

func copyUsers(in []models.User) []models.User {
	out := make([]models.User, len(in))
	copy(out, in)
	return out
}
