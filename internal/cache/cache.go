// Package cache is a TTL cache for derived analytical views. Keys encode
// the view kind and its canonically ordered parameters, so identical
// queries share one entry.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/firewatch-analytics/internal/observability"
)

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries   int           `json:"entries"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	OldestAge time.Duration `json:"oldest_age"`
}

// Cache stores computed view payloads until their TTL expires or the
// dataset changes underneath them.
type Cache struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	group   singleflight.Group

	mu         sync.Mutex
	entries    map[string]entry
	generation uint64
	hits       uint64
	misses     uint64
}

// New creates an empty cache. A nil clock means the real one.
func New(metrics *observability.Metrics, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]entry),
	}
}

// GetOrCompute returns the cached payload for key, computing and storing
// it on miss or expiry. Concurrent misses on the same key collapse to a
// single compute; the lock is never held across compute. Compute errors
// are returned to every waiter and nothing is stored.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		c.hits++
		c.mu.Unlock()
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.value, nil
	}
	c.misses++
	gen := c.generation
	c.mu.Unlock()
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	value, err, _ := c.group.Do(key, func() (any, error) {
		// A collapsed waiter may arrive just after the leader stored.
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.clock.Now().Before(e.expiresAt) {
			c.mu.Unlock()
			return e.value, nil
		}
		c.mu.Unlock()

		value, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// An invalidation during compute means the result is from the old
		// dataset; hand it to the caller but do not store it.
		if c.generation == gen {
			storedAt := c.clock.Now()
			c.entries[key] = entry{value: value, storedAt: storedAt, expiresAt: storedAt.Add(ttl)}
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// InvalidateAll drops every entry. In-flight computes started before the
// call will not repopulate the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.generation++
}

// Stats reports entry count, hit/miss totals, and the age of the oldest
// live entry.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
	now := c.clock.Now()
	for _, e := range c.entries {
		if age := now.Sub(e.storedAt); age > s.OldestAge {
			s.OldestAge = age
		}
	}
	return s
}
