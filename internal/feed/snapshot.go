// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package feed

import (
	"context"
	"sync"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/platform"
)

// Snapshot holds one parent row and replaces it wholesale on every UPDATE
// event. A DELETE event clears it.
type Snapshot[T models.Row] struct {
	rt       platform.Realtime
	name     string
	notifier notify.Notifier
	changes  chan struct{}

	mu    sync.Mutex
	value T
	ok    bool
	gen   uint64
	live  bool
	sub   *platform.Subscription
}

// NewSnapshot creates a stopped snapshot.
func NewSnapshot[T models.Row](rt platform.Realtime, name string, notifier notify.Notifier) *Snapshot[T] {
	return &Snapshot[T]{
		rt:       rt,
		name:     name,
		notifier: notify.Or(notifier),
		changes:  make(chan struct{}, 1),
	}
}

// Start subscribes on filter, then fetches the row. Subscription failures
// are reported and tolerated; fetch failures are returned.
func (s *Snapshot[T]) Start(ctx context.Context, filter platform.Filter, fetch func(ctx context.Context) (T, error)) error {
	s.Stop()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.live = true
	var zero T
	s.value, s.ok = zero, false
	s.mu.Unlock()

	sub, err := s.rt.Subscribe(ctx, filter)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("feed", s.name).Msg("Live updates unavailable, showing fetched row only")
		s.notifier.Warn("Live updates are unavailable", err)
	} else {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			sub.Close()
			return ErrNotMounted
		}
		s.sub = sub
		s.mu.Unlock()
		go s.follow(gen, sub)
	}

	row, err := fetch(ctx)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.stopLocked()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrNotMounted
	}
	// An UPDATE that raced ahead of the fetch is newer than the baseline.
	if !s.ok {
		s.value, s.ok = row, true
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Snapshot[T]) follow(gen uint64, sub *platform.Subscription) {
	for ev := range sub.Events() {
		s.apply(gen, ev)
	}
	if err := sub.Err(); err != nil {
		s.mu.Lock()
		current := s.gen == gen && s.live
		s.mu.Unlock()
		if current {
			s.notifier.Warn("Live updates stopped", err)
		}
	}
}

func (s *Snapshot[T]) apply(gen uint64, ev platform.ChangeEvent) {
	change, err := platform.DecodeChange[T](ev)
	if err != nil {
		logging.Warn().Err(err).Str("feed", s.name).Msg("Dropping invalid change event")
		metrics.RecordFeedEvent(s.name, string(Invalid))
		return
	}

	s.mu.Lock()
	if s.gen != gen || !s.live {
		s.mu.Unlock()
		return
	}
	outcome := Applied
	switch c := change.(type) {
	case platform.Updated[T]:
		s.value, s.ok = c.Row, true
	case platform.Inserted[T]:
		if s.ok {
			outcome = Duplicate
		} else {
			s.value, s.ok = c.Row, true
		}
	case platform.Deleted[T]:
		var zero T
		s.value, s.ok = zero, false
	}
	s.mu.Unlock()

	metrics.RecordFeedEvent(s.name, string(outcome))
	if outcome == Applied {
		s.signal()
	}
}

// Get returns the held row.
func (s *Snapshot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.ok
}

// Update replaces the held row with fn(row) and returns the previous row.
// It lets optimistic mutations edit the snapshot in place. A stopped
// snapshot is left unchanged.
func (s *Snapshot[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	prev, _ := s.UpdateAt(gen, fn)
	return prev
}

// UpdateAt is Update for the mount identified by gen. It reports false, and
// leaves the row alone, once that mount has been stopped or replaced.
func (s *Snapshot[T]) UpdateAt(gen uint64, fn func(T) T) (T, bool) {
	s.mu.Lock()
	prev := s.value
	if s.gen != gen || !s.live {
		s.mu.Unlock()
		return prev, false
	}
	s.value = fn(prev)
	s.mu.Unlock()
	s.signal()
	return prev, true
}

// Mounted reports whether the snapshot is between Start and Stop.
func (s *Snapshot[T]) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Generation identifies the current mount. It changes on every Start and
// Stop.
func (s *Snapshot[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Pin returns the snapshot bound to its current mount. Updates through it
// are dropped after the snapshot is stopped or remounted.
func (s *Snapshot[T]) Pin() *Pinned[T] {
	return &Pinned[T]{s: s, gen: s.Generation()}
}

// Pinned is a Snapshot held at one mount.
type Pinned[T models.Row] struct {
	s   *Snapshot[T]
	gen uint64
}

// Update edits the snapshot if the pinned mount is still current.
func (p *Pinned[T]) Update(fn func(T) T) T {
	prev, _ := p.s.UpdateAt(p.gen, fn)
	return prev
}

// Current reports whether the pinned mount is still the live one.
func (p *Pinned[T]) Current() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.gen == p.gen && p.s.live
}

// Changes signals after the row changes.
func (s *Snapshot[T]) Changes() <-chan struct{} { return s.changes }

func (s *Snapshot[T]) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Stop releases the subscription. The held row stays readable.
func (s *Snapshot[T]) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

func (s *Snapshot[T]) stopLocked() {
	if !s.live {
		return
	}
	s.gen++
	s.live = false
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
}
