// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package notify

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/bookswap/internal/logging"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	r.Alert("Could not publish listing", errors.New("network down"))
	r.Warn("Live updates unavailable", nil)
	r.Warn("Favorite reverted", errors.New("denied"))

	if got := r.Count("alert"); got != 1 {
		t.Errorf("expected 1 alert, got %d", got)
	}
	if got := r.Count("warning"); got != 2 {
		t.Errorf("expected 2 warnings, got %d", got)
	}
	notices := r.Notices()
	if notices[0].Message != "Could not publish listing" {
		t.Errorf("unexpected first notice: %+v", notices[0])
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.Init(logging.DefaultConfig())

	n := NewLogNotifier()
	n.Alert("Could not send message", errors.New("timeout"))

	out := buf.String()
	for _, want := range []string{`"kind":"alert"`, `"component":"notify"`, "Could not send message", "timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got: %s", want, out)
		}
	}
}

func TestOr(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	if Or(r) != Notifier(r) {
		t.Error("expected Or to return the given notifier")
	}
	if _, ok := Or(nil).(*LogNotifier); !ok {
		t.Error("expected Or(nil) to return a LogNotifier")
	}
}
