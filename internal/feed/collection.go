// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package feed

import (
	"sort"

	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/models"
)

// Order is the display order of a collection.
type Order int

const (
	// Ascending puts the oldest row first (chat messages).
	Ascending Order = iota
	// Descending puts the newest row first (wall posts, listings).
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// Collection is an id-deduplicated list kept sorted by creation time.
// It is not safe for concurrent use; Reconciler serializes access.
type Collection[T models.Row] struct {
	order      Order
	items      []T
	keys       map[string]struct{}
	tombstones map[string]struct{}
}

// NewCollection creates an empty collection.
func NewCollection[T models.Row](order Order) *Collection[T] {
	return &Collection[T]{
		order:      order,
		keys:       make(map[string]struct{}),
		tombstones: make(map[string]struct{}),
	}
}

// Outcome describes what a collection operation did.
type Outcome string

// Outcome values double as metric labels.
const (
	Applied    Outcome = metrics.FeedApplied
	Duplicate  Outcome = metrics.FeedDuplicate
	Tombstoned Outcome = metrics.FeedTombstoned
	Ignored    Outcome = metrics.FeedIgnored
	Invalid    Outcome = metrics.FeedInvalid
)

// Insert adds item at its ordering position unless its id is already held
// or was deleted.
func (c *Collection[T]) Insert(item T) Outcome {
	id := item.Key()
	if _, ok := c.keys[id]; ok {
		return Duplicate
	}
	if _, ok := c.tombstones[id]; ok {
		return Tombstoned
	}
	pos := c.position(item)
	c.items = append(c.items, item)
	copy(c.items[pos+1:], c.items[pos:])
	c.items[pos] = item
	c.keys[id] = struct{}{}
	return Applied
}

// position returns the index after every row that sorts before or equal to
// item, so equal timestamps keep arrival order.
func (c *Collection[T]) position(item T) int {
	at := item.Created()
	if c.order == Descending {
		return sort.Search(len(c.items), func(i int) bool {
			return c.items[i].Created().Before(at)
		})
	}
	return sort.Search(len(c.items), func(i int) bool {
		return c.items[i].Created().After(at)
	})
}

// Merge inserts a fetched baseline. Rows already held or deleted are
// skipped; the rest keep the fetch's relative order among equal timestamps.
func (c *Collection[T]) Merge(items []T) (applied int) {
	for _, item := range items {
		if c.Insert(item) == Applied {
			applied++
		}
	}
	return applied
}

// Replace swaps the held row with the same id in place.
func (c *Collection[T]) Replace(item T) Outcome {
	id := item.Key()
	if _, ok := c.keys[id]; !ok {
		return Ignored
	}
	for i := range c.items {
		if c.items[i].Key() == id {
			c.items[i] = item
			break
		}
	}
	return Applied
}

// Remove deletes the row with id, if held, and tombstones id either way.
func (c *Collection[T]) Remove(id string) Outcome {
	c.tombstones[id] = struct{}{}
	return c.Drop(id)
}

// Drop deletes the row with id, if held. Unlike Remove, the row may be
// inserted again later.
func (c *Collection[T]) Drop(id string) Outcome {
	if _, ok := c.keys[id]; !ok {
		return Ignored
	}
	delete(c.keys, id)
	for i := range c.items {
		if c.items[i].Key() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return Applied
}

// Has reports whether a row with id is held.
func (c *Collection[T]) Has(id string) bool {
	_, ok := c.keys[id]
	return ok
}

// Get returns the held row with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	for _, item := range c.items {
		if item.Key() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of held rows.
func (c *Collection[T]) Len() int { return len(c.items) }

// Items returns a copy of the rows in display order.
func (c *Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
