// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSweepInterval is how often New sweeps expired entries.
const DefaultSweepInterval = 5 * time.Minute

type entry[V any] struct {
	value   V
	expires time.Time
}

func (e entry[V]) expired(now time.Time) bool { return now.After(e.expires) }

// Cache maps keys to values that expire after a TTL. Expired entries are
// dropped lazily by Get and eagerly by a background sweep until Close.
type Cache[K comparable, V any] struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[K]entry[V]

	hits, misses atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   int64
	Misses int64
}

// New returns a cache whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return NewWithSweep[K, V](ttl, DefaultSweepInterval)
}

// NewWithSweep is New with an explicit sweep interval.
func NewWithSweep[K comparable, V any](ttl, sweep time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweep)
	return c
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.expired(time.Now()) {
		c.mu.Lock()
		// A concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && cur.expired(time.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value for the cache's TTL.
func (c *Cache[K, V]) Set(key K, value V) { c.SetWithTTL(key, value, c.ttl) }

// SetWithTTL stores value for ttl instead of the cache's TTL.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// GetOrLoad returns the cached value for key, or stores and returns what load
// produces. Load errors are returned and nothing is stored.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete drops key, e.g. after the underlying row changed.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts entries, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close stops the sweep. It is safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.sweep(now)
		case <-c.done:
			return
		}
	}
}

func (c *Cache[K, V]) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}
