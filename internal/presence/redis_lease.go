package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLeasePrefix = "presence:lease:"
	redisLeaseIndex  = "presence:leases"
)

// RedisLeaseManager keeps each lease as a TTL'd Redis key plus an entry in a
// persistent registry set, and detects expiry with a sweep loop. The TTL keeps
// counting down while this process is dead; leases left behind by a crash show
// up on the next sweep as registry entries without a live key and are handed
// to the orphan handler so their Offline transitions still happen.
type RedisLeaseManager struct {
	client *redis.Client

	mu     sync.Mutex
	armed  map[string]redisLease
	orphan func(key string)

	stop chan struct{}
	done chan struct{}
}

type redisLease struct {
	ttl      time.Duration
	onExpire func()
}

// NewRedisLeaseManager starts the sweep loop. sweepEvery bounds how stale an
// expiry notification can be on top of the lease TTL itself.
func NewRedisLeaseManager(client *redis.Client, sweepEvery time.Duration) *RedisLeaseManager {
	m := &RedisLeaseManager{
		client: client,
		armed:  make(map[string]redisLease),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.sweep(sweepEvery)
	return m
}

// SetOrphanHandler installs the callback for lease keys whose TTL ran out in
// a previous process. Registry entries found while no handler is installed
// are left in place for a later sweep.
func (m *RedisLeaseManager) SetOrphanHandler(fn func(key string)) {
	m.mu.Lock()
	m.orphan = fn
	m.mu.Unlock()
}

func (m *RedisLeaseManager) Arm(key string, ttl time.Duration, onExpire func()) {
	ctx := context.Background()
	pipe := m.client.Pipeline()
	pipe.Set(ctx, redisLeasePrefix+key, "1", ttl)
	pipe.SAdd(ctx, redisLeaseIndex, key)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[presence] redis lease arm %s: %v", key, err)
	}
	m.mu.Lock()
	m.armed[key] = redisLease{ttl: ttl, onExpire: onExpire}
	m.mu.Unlock()
}

func (m *RedisLeaseManager) Renew(key string) bool {
	m.mu.Lock()
	l, ok := m.armed[key]
	m.mu.Unlock()
	if !ok {
		return false
	}
	ctx := context.Background()
	set, err := m.client.Expire(ctx, redisLeasePrefix+key, l.ttl).Result()
	if err != nil {
		log.Printf("[presence] redis lease renew %s: %v", key, err)
		return true
	}
	if !set {
		// Key already expired but the sweeper has not fired yet; the renew
		// proves the channel is alive, so re-arm.
		pipe := m.client.Pipeline()
		pipe.Set(ctx, redisLeasePrefix+key, "1", l.ttl)
		pipe.SAdd(ctx, redisLeaseIndex, key)
		pipe.Exec(ctx)
	}
	return true
}

func (m *RedisLeaseManager) Cancel(key string) {
	m.mu.Lock()
	delete(m.armed, key)
	m.mu.Unlock()
	ctx := context.Background()
	pipe := m.client.Pipeline()
	pipe.Del(ctx, redisLeasePrefix+key)
	pipe.SRem(ctx, redisLeaseIndex, key)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[presence] redis lease cancel %s: %v", key, err)
	}
}

// Close stops the sweep loop. Armed leases keep their Redis TTLs and registry
// entries, so the next process to sweep inherits them.
func (m *RedisLeaseManager) Close() {
	close(m.stop)
	<-m.done
}

func (m *RedisLeaseManager) sweep(every time.Duration) {
	defer close(m.done)
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-tick.C:
		}
		ctx := context.Background()
		members, err := m.client.SMembers(ctx, redisLeaseIndex).Result()
		if err != nil {
			log.Printf("[presence] redis lease sweep: %v", err)
			continue
		}
		for _, k := range members {
			n, err := m.client.Exists(ctx, redisLeasePrefix+k).Result()
			if err != nil {
				log.Printf("[presence] redis lease sweep %s: %v", k, err)
				continue
			}
			if n > 0 {
				continue
			}
			m.mu.Lock()
			l, armed := m.armed[k]
			if armed {
				delete(m.armed, k)
			}
			orphanFn := m.orphan
			m.mu.Unlock()
			switch {
			case armed:
				m.client.SRem(ctx, redisLeaseIndex, k)
				l.onExpire()
			case orphanFn != nil:
				m.client.SRem(ctx, redisLeaseIndex, k)
				orphanFn(k)
			}
		}
	}
}
