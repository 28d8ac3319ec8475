// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package optimistic applies a local change before its remote call resolves
// and undoes it if the call fails.
package optimistic

import (
	"context"
	"sync"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/notify"
)

// State is local state edited atomically. Update stores fn(current) and
// returns the value it replaced.
type State[S any] interface {
	Update(fn func(S) S) S
}

// Mutation describes one optimistic change.
type Mutation[S, T any] struct {
	// Name labels logs and metrics, e.g. "favorite".
	Name string
	// Apply is the local change. It must not modify its argument in place.
	Apply func(S) S
	// Rollback undoes Apply on the current state. When nil, the state is
	// restored to the value Apply replaced, which also discards any change
	// made concurrently.
	Rollback func(S) S
	// Remote performs the authoritative write.
	Remote func(ctx context.Context) (T, error)
	// Reconcile folds the authoritative result into the state. Optional.
	Reconcile func(S, T) S
	// Notifier receives a warning on failure. Defaults to a log notifier.
	Notifier notify.Notifier
	// Failure is the warning text shown on rollback.
	Failure string
	// Current reports whether the screen that started the mutation is still
	// mounted. When it returns false once Remote resolves, the result is
	// discarded: neither Rollback nor Reconcile runs and no warning is shown.
	// Optional.
	Current func() bool
}

func (m Mutation[S, T]) current() bool {
	return m.Current == nil || m.Current()
}

// Run applies m locally, then calls m.Remote. On success the result is
// reconciled into the state; on failure the local change is undone and the
// notifier is told. Either way the remote result is returned. Run never
// retries.
func Run[S, T any](ctx context.Context, st State[S], m Mutation[S, T]) (T, error) {
	before := st.Update(m.Apply)

	result, err := m.Remote(ctx)
	if !m.current() {
		logging.Ctx(ctx).Debug().Err(err).Str("mutation", m.Name).Msg("Screen changed before mutation resolved, result discarded")
		metrics.RecordOptimistic(m.Name, err == nil)
		return result, err
	}
	if err != nil {
		if m.Rollback != nil {
			st.Update(m.Rollback)
		} else {
			st.Update(func(S) S { return before })
		}
		logging.Ctx(ctx).Warn().Err(err).Str("mutation", m.Name).Msg("Optimistic update rolled back")
		failure := m.Failure
		if failure == "" {
			failure = "Could not save your change"
		}
		notify.Or(m.Notifier).Warn(failure, err)
		metrics.RecordOptimistic(m.Name, false)
		return result, err
	}

	if m.Reconcile != nil {
		st.Update(func(s S) S { return m.Reconcile(s, result) })
	}
	metrics.RecordOptimistic(m.Name, true)
	return result, nil
}

// Value is a mutex-guarded State.
type Value[S any] struct {
	mu       sync.Mutex
	v        S
	onChange func(S)
}

// NewValue creates a Value holding initial. onChange, when set, runs after
// every update with the new value, outside the lock.
func NewValue[S any](initial S, onChange func(S)) *Value[S] {
	return &Value[S]{v: initial, onChange: onChange}
}

// Load returns the current value.
func (v *Value[S]) Load() S {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

// Store replaces the value.
func (v *Value[S]) Store(s S) {
	v.Update(func(S) S { return s })
}

// Update implements State.
func (v *Value[S]) Update(fn func(S) S) S {
	v.mu.Lock()
	prev := v.v
	v.v = fn(prev)
	next := v.v
	v.mu.Unlock()
	if v.onChange != nil {
		v.onChange(next)
	}
	return prev
}
