// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package notify is the user-facing notification surface for screen controllers.
//
// Alert is for failed primary actions (publish, save, send) and must be shown
// to the user before they continue. Warn is non-blocking, such as live updates
// being unavailable or an optimistic change having been reverted.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookswap/internal/logging"
)

// Notifier receives user-facing notices.
type Notifier interface {
	Alert(title string, err error)
	Warn(message string, err error)
}

// LogNotifier writes notices to the structured log. Used by the CLI and as the
// default when a controller has no notifier.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a notifier tagged with component=notify.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.WithComponent("notify")}
}

// Alert logs at error level.
func (n *LogNotifier) Alert(title string, err error) {
	n.logger.Error().Err(err).Str("kind", "alert").Msg(title)
}

// Warn logs at warn level.
func (n *LogNotifier) Warn(message string, err error) {
	n.logger.Warn().Err(err).Str("kind", "warning").Msg(message)
}

// Notice is one recorded notification.
type Notice struct {
	Kind    string // "alert" or "warning"
	Message string
	Err     error
}

// Recorder keeps every notice in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Alert records an alert.
func (r *Recorder) Alert(title string, err error) {
	r.add(Notice{Kind: "alert", Message: title, Err: err})
}

// Warn records a warning.
func (r *Recorder) Warn(message string, err error) {
	r.add(Notice{Kind: "warning", Message: message, Err: err})
}

func (r *Recorder) add(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns the number of notices of the given kind.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

// Or returns n, or a LogNotifier when n is nil.
func Or(n Notifier) Notifier {
	if n == nil {
		return NewLogNotifier()
	}
	return n
}
