package presence

import "sync"

// Subscription is a registered online-set listener. Callbacks receive the full
// current set (authoritative snapshot, not a diff) and may be invoked more
// than once for the same state.
type Subscription struct {
	tracker *Tracker
	mu      sync.Mutex
	closed  bool
	cb      func(online map[uint]bool)
}

// Subscribe registers cb and invokes it immediately with the current set.
func (t *Tracker) Subscribe(cb func(online map[uint]bool)) *Subscription {
	sub := &Subscription{tracker: t, cb: cb}
	t.subMu.Lock()
	t.subs[sub] = struct{}{}
	t.subMu.Unlock()
	sub.deliver(t.OnlineSet())
	return sub
}

// Unsubscribe tears the subscription down. Once it returns, cb is never
// invoked again.
func (s *Subscription) Unsubscribe() {
	s.tracker.subMu.Lock()
	delete(s.tracker.subs, s)
	s.tracker.subMu.Unlock()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Subscription) deliver(online map[uint]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cb(online)
}

func (t *Tracker) notify(online map[uint]bool) {
	t.subMu.RLock()
	subs := make([]*Subscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subMu.RUnlock()
	for _, s := range subs {
		// Each subscriber gets its own copy; snapshots are read-only to them.
		cp := make(map[uint]bool, len(online))
		for id := range online {
			cp[id] = true
		}
		s.deliver(cp)
	}
}
