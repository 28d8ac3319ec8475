// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/platform"
)

// ErrNotMounted is returned when a reconciler is used outside Start/Stop.
var ErrNotMounted = errors.New("feed not mounted")

// FetchFunc loads the baseline rows.
type FetchFunc[T models.Row] func(ctx context.Context) ([]T, error)

// EnrichFunc decorates an inserted row before it is merged. It must return
// the row unchanged when its lookup fails.
type EnrichFunc[T models.Row] func(ctx context.Context, row T) T

// Options configures a Reconciler.
type Options[T models.Row] struct {
	// Name labels logs and metrics, e.g. "messages".
	Name string
	// Order is the display order.
	Order Order
	// Notifier receives the warning when the subscription cannot be
	// opened or ends unexpectedly. Defaults to a log notifier.
	Notifier notify.Notifier
	// Enrich runs on rows arriving through INSERT events.
	Enrich EnrichFunc[T]
	// Keep, when set, narrows the feed beyond its subscription filter.
	// Inserted rows failing it are ignored. An updated row failing it is
	// dropped, and one passing it is added if not yet held.
	Keep func(T) bool
}

// Reconciler merges a baseline fetch and one change subscription into a
// Collection. The zero value is not usable; call New.
type Reconciler[T models.Row] struct {
	rt      platform.Realtime
	opts    Options[T]
	changes chan struct{}

	mu     sync.Mutex
	coll   *Collection[T]
	gen    uint64
	live   bool
	sub    *platform.Subscription
	cancel context.CancelFunc
}

// New creates a stopped reconciler.
func New[T models.Row](rt platform.Realtime, opts Options[T]) *Reconciler[T] {
	opts.Notifier = notify.Or(opts.Notifier)
	if opts.Name == "" {
		opts.Name = "feed"
	}
	return &Reconciler[T]{
		rt:      rt,
		opts:    opts,
		changes: make(chan struct{}, 1),
		coll:    NewCollection[T](opts.Order),
	}
}

// Start mounts the reconciler on filter. It subscribes first so no change
// committed during the fetch is missed, then merges the fetched baseline.
// A subscription failure is reported and tolerated; a fetch failure stops
// the reconciler and is returned.
func (r *Reconciler[T]) Start(ctx context.Context, filter platform.Filter, fetch FetchFunc[T]) error {
	r.Stop()

	mountCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.coll = NewCollection[T](r.opts.Order)
	r.live = true
	r.cancel = cancel
	r.mu.Unlock()

	log := logging.Ctx(ctx).With().Str("feed", r.opts.Name).Str("filter", filter.String()).Logger()

	sub, err := r.rt.Subscribe(ctx, filter)
	if err != nil {
		log.Warn().Err(err).Msg("Live updates unavailable, showing fetched rows only")
		r.opts.Notifier.Warn("Live updates are unavailable", err)
	} else if !r.attach(gen, sub) {
		sub.Close()
		return ErrNotMounted
	} else {
		go r.follow(mountCtx, gen, sub)
	}

	rows, err := fetch(ctx)
	if err != nil {
		r.stopGen(gen)
		return err
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		log.Debug().Msg("Discarding baseline fetched after unmount")
		return ErrNotMounted
	}
	applied := r.coll.Merge(rows)
	r.mu.Unlock()
	r.signal()

	log.Debug().Int("fetched", len(rows)).Int("merged", applied).Bool("live", sub != nil).Msg("Feed mounted")
	return nil
}

func (r *Reconciler[T]) attach(gen uint64, sub *platform.Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	r.sub = sub
	return true
}

// follow applies events until the subscription ends.
func (r *Reconciler[T]) follow(ctx context.Context, gen uint64, sub *platform.Subscription) {
	for ev := range sub.Events() {
		r.apply(ctx, gen, ev)
	}
	if err := sub.Err(); err != nil && r.current(gen) {
		logging.Warn().Err(err).Str("feed", r.opts.Name).Msg("Live updates stopped")
		r.opts.Notifier.Warn("Live updates stopped", err)
	}
}

func (r *Reconciler[T]) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen && r.live
}

// apply decodes one event and merges it. Enrichment runs before the lock is
// taken so a slow lookup never blocks readers.
func (r *Reconciler[T]) apply(ctx context.Context, gen uint64, ev platform.ChangeEvent) Outcome {
	change, err := platform.DecodeChange[T](ev)
	if err != nil {
		logging.Warn().Err(err).Str("feed", r.opts.Name).Msg("Dropping invalid change event")
		metrics.RecordFeedEvent(r.opts.Name, string(Invalid))
		return Invalid
	}
	if ins, ok := change.(platform.Inserted[T]); ok && r.opts.Enrich != nil {
		change = platform.Inserted[T]{Row: r.opts.Enrich(ctx, ins.Row)}
	}

	r.mu.Lock()
	if r.gen != gen || !r.live {
		r.mu.Unlock()
		return Ignored
	}
	outcome := r.merge(change)
	r.mu.Unlock()

	metrics.RecordFeedEvent(r.opts.Name, string(outcome))
	if outcome == Applied {
		r.signal()
	}
	return outcome
}

func (r *Reconciler[T]) merge(change platform.Change[T]) Outcome {
	keep := r.opts.Keep
	switch c := change.(type) {
	case platform.Inserted[T]:
		if keep != nil && !keep(c.Row) {
			return Ignored
		}
		return r.coll.Insert(c.Row)
	case platform.Updated[T]:
		switch {
		case keep == nil:
			return r.coll.Replace(c.Row)
		case !keep(c.Row):
			return r.coll.Drop(c.Row.Key())
		case r.coll.Has(c.Row.Key()):
			return r.coll.Replace(c.Row)
		}
		return r.coll.Insert(c.Row)
	case platform.Deleted[T]:
		return r.coll.Remove(c.ID)
	default:
		return Invalid
	}
}

// Apply merges a change event as if it came from the subscription.
func (r *Reconciler[T]) Apply(ctx context.Context, ev platform.ChangeEvent) (Outcome, error) {
	r.mu.Lock()
	gen, live := r.gen, r.live
	r.mu.Unlock()
	if !live {
		return Ignored, ErrNotMounted
	}
	return r.apply(ctx, gen, ev), nil
}

// Add merges a row the caller just wrote, such as a sent message. If the
// row's INSERT event was already applied, Add is a no-op.
func (r *Reconciler[T]) Add(row T) (Outcome, error) {
	r.mu.Lock()
	if !r.live {
		r.mu.Unlock()
		return Ignored, ErrNotMounted
	}
	outcome := r.coll.Insert(row)
	r.mu.Unlock()
	if outcome == Applied {
		r.signal()
	}
	return outcome, nil
}

// Update rewrites the held row with id through fn, keeping its position.
// It reports false when the row is not held or the reconciler is stopped.
func (r *Reconciler[T]) Update(id string, fn func(T) T) bool {
	return r.UpdateAt(r.Generation(), id, fn)
}

// UpdateAt is Update for the mount identified by gen. Writes for a mount
// that has since been stopped or replaced are dropped.
func (r *Reconciler[T]) UpdateAt(gen uint64, id string, fn func(T) T) bool {
	r.mu.Lock()
	if r.gen != gen || !r.live {
		r.mu.Unlock()
		return false
	}
	row, ok := r.coll.Get(id)
	if ok {
		r.coll.Replace(fn(row))
	}
	r.mu.Unlock()
	if ok {
		r.signal()
	}
	return ok
}

// Generation identifies the current mount. It changes on every Start and
// Stop.
func (r *Reconciler[T]) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Items returns the rows in display order.
func (r *Reconciler[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coll.Items()
}

// Get returns the held row with id.
func (r *Reconciler[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coll.Get(id)
}

// Len returns the number of held rows.
func (r *Reconciler[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coll.Len()
}

// Live reports whether a subscription is currently open.
func (r *Reconciler[T]) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return false
	}
	select {
	case <-r.sub.Done():
		return false
	default:
		return true
	}
}

// Mounted reports whether the reconciler is between Start and Stop.
func (r *Reconciler[T]) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Changes signals after the rows change.
func (r *Reconciler[T]) Changes() <-chan struct{} { return r.changes }

func (r *Reconciler[T]) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Stop releases the subscription. Held rows stay readable until the next
// Start. Safe to call when stopped.
func (r *Reconciler[T]) Stop() {
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
}

func (r *Reconciler[T]) stopGen(gen uint64) {
	r.mu.Lock()
	if r.gen == gen {
		r.stopLocked()
	}
	r.mu.Unlock()
}

func (r *Reconciler[T]) stopLocked() {
	if !r.live {
		return
	}
	r.gen++
	r.live = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.sub != nil {
		// Close only takes the subscription's own locks.
		r.sub.Close()
		r.sub = nil
	}
}
