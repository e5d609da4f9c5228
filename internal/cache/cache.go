// Package cache holds a short-lived, non-owning view of fetched analyses.
// The history collection remains the source of truth; cache entries exist
// to bound redundant store reads and expire on their own.
package cache

import (
	"sync"
	"time"

	"github.com/mindprint-labs/mindprint/internal/domain"
)

// DefaultTTL bounds how stale a cached analysis view can get without any
// invalidation signal from the store.
const DefaultTTL = 30 * time.Minute

var timeNow = time.Now

type entry struct {
	analysis  domain.Analysis
	fetchedAt time.Time
}

// Cache is an in-memory map from analysis id to (value, fetch timestamp)
// with lazy TTL eviction. It performs no I/O.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the cached analysis for id. An expired entry is treated as
// absent even before the next sweep.
func (c *Cache) Get(id string) (domain.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || timeNow().Sub(e.fetchedAt) > c.ttl {
		return domain.Analysis{}, false
	}
	return e.analysis, true
}

func (c *Cache) Put(id string, a domain.Analysis) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{analysis: a, fetchedAt: timeNow()}
}

// Sweep evicts entries older than the TTL and returns how many were
// removed. Invoked opportunistically before each lookup cycle and by the
// background sweeper.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := timeNow()
	evicted := 0
	for id, e := range c.entries {
		if now.Sub(e.fetchedAt) > c.ttl {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// Reset drops every entry. Tests use it to get an isolated instance state.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
