package cooldown

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/reactguard/internal/guard/common/clock"
)

// Key identifies a member within a guild.
type Key struct {
	GuildID int64
	UserID  int64
}

// Tracker remembers recent actions per member in a bounded LRU and reports
// whether a new action is allowed. It tracks hits (suppressed), misses
// (allowed) and evictions.
type Tracker struct {
	mu        sync.Mutex
	lru       *lru.Cache[Key, time.Time]
	window    time.Duration
	clock     clock.Clock
	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a Tracker holding at most size members. A window <= 0 disables
// suppression: Allow always returns true.
func New(size int, window time.Duration, clk clock.Clock) (*Tracker, error) {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	t := &Tracker{window: window, clock: clk}
	cache, err := lru.NewWithEvict(size, func(_ Key, _ time.Time) {
		atomic.AddUint64(&t.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	t.lru = cache
	return t, nil
}

// Allow reports whether k may act now. When it returns true the window restarts for k.
func (t *Tracker) Allow(k Key) bool {
	if t.window <= 0 {
		atomic.AddUint64(&t.misses, 1)
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if until, ok := t.lru.Get(k); ok && now.Before(until) {
		atomic.AddUint64(&t.hits, 1)
		return false
	}
	t.lru.Add(k, now.Add(t.window))
	atomic.AddUint64(&t.misses, 1)
	return true
}

// Forget drops every entry for guildID.
func (t *Tracker) Forget(guildID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range t.lru.Keys() {
		if k.GuildID == guildID {
			t.lru.Remove(k)
		}
	}
}

// Len returns the number of tracked members.
func (t *Tracker) Len() int { return t.lru.Len() }

// Stats returns cumulative hit/miss/eviction counters.
func (t *Tracker) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&t.hits), atomic.LoadUint64(&t.misses), atomic.LoadUint64(&t.evictions)
}
