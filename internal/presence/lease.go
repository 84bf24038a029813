package presence

import (
	"sync"
	"time"
)

// LeaseManager is the disconnect-watcher primitive: a session arms a lease with
// an expiry, renews it on every heartbeat, and cancels it on graceful close.
// The onExpire callback fires at most once per armed key. A firing can race a
// concurrent Cancel; consumers must treat duplicate or late firings as no-ops
// (the tracker discards them by session token).
type LeaseManager interface {
	Arm(key string, ttl time.Duration, onExpire func())
	// Renew extends the lease by its TTL; returns false if the key is not armed.
	Renew(key string) bool
	Cancel(key string)
}

// MemoryLeaseManager runs leases on in-process timers. It is the default when
// no Redis address is configured.
type MemoryLeaseManager struct {
	mu     sync.Mutex
	leases map[string]*memoryLease
}

type memoryLease struct {
	timer *time.Timer
	ttl   time.Duration
}

func NewMemoryLeaseManager() *MemoryLeaseManager {
	return &MemoryLeaseManager{leases: make(map[string]*memoryLease)}
}

func (m *MemoryLeaseManager) Arm(key string, ttl time.Duration, onExpire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.leases[key]; ok {
		old.timer.Stop()
	}
	l := &memoryLease{ttl: ttl}
	l.timer = time.AfterFunc(ttl, func() {
		// A firing that lost the race with Cancel/Arm must be dropped.
		m.mu.Lock()
		cur, ok := m.leases[key]
		if ok && cur == l {
			delete(m.leases, key)
		}
		m.mu.Unlock()
		if ok && cur == l {
			onExpire()
		}
	})
	m.leases[key] = l
}

func (m *MemoryLeaseManager) Renew(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	if !ok {
		return false
	}
	l.timer.Reset(l.ttl)
	return true
}

func (m *MemoryLeaseManager) Cancel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[key]; ok {
		l.timer.Stop()
		delete(m.leases, key)
	}
}
