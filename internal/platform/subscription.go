// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"sync"

	"github.com/tomtom215/bookswap/internal/metrics"
)

// Subscription is a cancellable handle on one change feed. Events is closed
// once the subscription ends, whether by Close or by the transport failing;
// Err reports the failure, if any.
type Subscription struct {
	filter  Filter
	events  chan ChangeEvent
	done    chan struct{}
	release func()

	mu     sync.Mutex // guards closed and sends on events
	closed bool
	once   sync.Once

	errMu sync.Mutex
	err   error
}

// NewSubscription creates an open subscription. release runs exactly once
// when the subscription ends and should detach it from its transport.
func NewSubscription(filter Filter, buffer int, release func()) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	metrics.TrackSubscription(true)
	return &Subscription{
		filter:  filter,
		events:  make(chan ChangeEvent, buffer),
		done:    make(chan struct{}),
		release: release,
	}
}

// Filter returns the subscription's scope.
func (s *Subscription) Filter() Filter { return s.filter }

// Events delivers change events in platform order.
func (s *Subscription) Events() <-chan ChangeEvent { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the subscription, or nil.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Push delivers ev, blocking while the buffer is full. It returns false once
// the subscription has ended.
func (s *Subscription) Push(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		metrics.RealtimeEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()
		return true
	case <-s.done:
		return false
	}
}

// Fail ends the subscription with err.
func (s *Subscription) Fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.end()
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.end()
}

func (s *Subscription) end() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
		metrics.TrackSubscription(false)
		if s.release != nil {
			s.release()
		}
	})
}
