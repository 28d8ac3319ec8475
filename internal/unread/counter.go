// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package unread tracks the signed-in user's unread message count.
//
// Counter is an observable store passed explicitly to whoever shows the
// count; Tracker keeps it current from the platform.
package unread

import "sync"

// Counter holds the unread count and notifies watchers of changes.
type Counter struct {
	mu       sync.Mutex
	n        int
	watchers map[int]chan int
	next     int
}

// NewCounter creates a zero counter.
func NewCounter() *Counter {
	return &Counter{watchers: make(map[int]chan int)}
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Set stores n and notifies watchers if it changed.
func (c *Counter) Set(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == c.n {
		return
	}
	c.n = n
	for _, ch := range c.watchers {
		offer(ch, n)
	}
}

// Watch returns a channel that receives the current count immediately and
// then every change. A slow reader only misses intermediate values; the
// latest one is always delivered. Call cancel to stop watching.
func (c *Counter) Watch() (<-chan int, func()) {
	ch := make(chan int, 1)
	c.mu.Lock()
	id := c.next
	c.next++
	c.watchers[id] = ch
	offer(ch, c.n)
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// offer replaces any undelivered value with n. Callers hold c.mu, which
// makes the drain-then-send pair atomic with respect to other senders.
func offer(ch chan int, n int) {
	select {
	case <-ch:
	default:
	}
	ch <- n
}
