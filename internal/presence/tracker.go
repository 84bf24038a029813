package presence

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Archiver persists presence transitions so last-seen history survives
// restarts. Implementations must be safe for concurrent use.
type Archiver interface {
	SaveTransition(userID uint, online bool, at time.Time) error
}

// Session is one live connection for a user. The token is monotonically
// increasing per user; a disconnect watcher that fires with a token older than
// the sessions currently open is stale and discarded.
type Session struct {
	UserID uint
	token  uint64
}

type userState struct {
	mu        sync.Mutex
	nextToken uint64
	open      map[uint64]struct{}
	lastSeen  time.Time
}

// Tracker maintains online/offline state per user. A user is Online while at
// least one session is open; the last session closing (explicitly or via its
// lease expiring after the grace period) flips the user Offline and stamps
// last-seen.
type Tracker struct {
	grace  time.Duration
	leases LeaseManager
	arch   Archiver

	mu    sync.RWMutex
	users map[uint]*userState

	onlineMu sync.RWMutex
	online   map[uint]bool

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// NewTracker creates a tracker with the given disconnect grace period. arch
// may be nil when transitions need not be persisted.
func NewTracker(grace time.Duration, leases LeaseManager, arch Archiver) *Tracker {
	return &Tracker{
		grace:  grace,
		leases: leases,
		arch:   arch,
		users:  make(map[uint]*userState),
		online: make(map[uint]bool),
		subs:   make(map[*Subscription]struct{}),
	}
}

func leaseKey(userID uint, token uint64) string {
	return fmt.Sprintf("%d:%d", userID, token)
}

func (t *Tracker) state(userID uint) *userState {
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st != nil {
		return st
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if st = t.users[userID]; st == nil {
		st = &userState{open: make(map[uint64]struct{})}
		t.users[userID] = st
	}
	return st
}

// Connect opens a session and marks the user Online immediately. The armed
// lease fires the disconnect watcher if the channel dies without an explicit
// Disconnect and no heartbeat arrives within the grace period.
func (t *Tracker) Connect(userID uint) *Session {
	st := t.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextToken++
	token := st.nextToken
	st.open[token] = struct{}{}
	t.leases.Arm(leaseKey(userID, token), t.grace, func() {
		t.expire(userID, token)
	})
	if len(st.open) == 1 {
		t.setOnline(userID, true, time.Time{})
	}
	return &Session{UserID: userID, token: token}
}

// Heartbeat renews the session's lease. Driven by the connection channel's
// liveness signal (websocket pong).
func (t *Tracker) Heartbeat(s *Session) {
	t.leases.Renew(leaseKey(s.UserID, s.token))
}

// Disconnect closes the session gracefully. Idempotent per session.
func (t *Tracker) Disconnect(s *Session) {
	t.leases.Cancel(leaseKey(s.UserID, s.token))
	t.closeSession(s.UserID, s.token, false)
}

// expire is the disconnect-watcher path: the lease for (userID, token) ran out.
func (t *Tracker) expire(userID uint, token uint64) {
	t.closeSession(userID, token, true)
}

// RecoverLease finishes the disconnect watcher for a session armed by a
// previous process. Such sessions have no open-set entry here, so the Offline
// transition goes straight to the archive unless the user is connected again.
func (t *Tracker) RecoverLease(key string) {
	var userID uint
	var token uint64
	if _, err := fmt.Sscanf(key, "%d:%d", &userID, &token); err != nil {
		log.Printf("[presence] undecodable lease key %q: %v", key, err)
		return
	}
	st := t.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.open[token]; ok {
		return
	}
	if len(st.open) > 0 {
		log.Printf("[presence] stale watcher firing for user %d session %d, ignored", userID, token)
		return
	}
	log.Printf("[presence] recovering offline transition for user %d session %d", userID, token)
	seen := time.Now()
	st.lastSeen = seen
	t.setOnline(userID, false, seen)
}

func (t *Tracker) closeSession(userID uint, token uint64, fromWatcher bool) {
	st := t.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.open[token]; !ok {
		if fromWatcher {
			log.Printf("[presence] stale watcher firing for user %d session %d, ignored", userID, token)
		}
		return
	}
	delete(st.open, token)
	if len(st.open) == 0 {
		seen := time.Now()
		st.lastSeen = seen
		t.setOnline(userID, false, seen)
	}
}

// setOnline applies an online-map transition. Callers hold the user's state
// mutex, which keeps per-user transitions in open-set order; subscriber
// callbacks therefore must not call back into the tracker.
func (t *Tracker) setOnline(userID uint, online bool, seen time.Time) {
	t.onlineMu.Lock()
	if online {
		t.online[userID] = true
	} else {
		delete(t.online, userID)
	}
	snapshot := make(map[uint]bool, len(t.online))
	for id := range t.online {
		snapshot[id] = true
	}
	t.onlineMu.Unlock()

	if t.arch != nil {
		at := seen
		if online {
			at = time.Now()
		}
		if err := t.arch.SaveTransition(userID, online, at); err != nil {
			log.Printf("[presence] archive transition for user %d: %v", userID, err)
		}
	}
	t.notify(snapshot)
}

// IsOnline is a point-in-time read.
func (t *Tracker) IsOnline(userID uint) bool {
	t.onlineMu.RLock()
	defer t.onlineMu.RUnlock()
	return t.online[userID]
}

// OnlineSet returns a copy of the current online-user set.
func (t *Tracker) OnlineSet() map[uint]bool {
	t.onlineMu.RLock()
	defer t.onlineMu.RUnlock()
	out := make(map[uint]bool, len(t.online))
	for id := range t.online {
		out[id] = true
	}
	return out
}

// LastSeen returns when the user last went Offline. ok is false if the user
// never connected or is currently Online.
func (t *Tracker) LastSeen(userID uint) (time.Time, bool) {
	if t.IsOnline(userID) {
		return time.Time{}, false
	}
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st == nil {
		return time.Time{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return st.lastSeen, true
}
