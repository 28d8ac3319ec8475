// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/platform"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub starts a hub that stops with the test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a connectionless client joined to topics.
func createTestClient(hub *Hub, topics map[string]platform.Filter) *Client {
	c := NewClient(hub, nil)
	for topic, f := range topics {
		c.topics[topic] = f
	}
	return c
}

// registerClient registers a client and waits until the hub counts it.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	want := hub.Clients() + 1
	hub.Register <- client
	waitFor(t, func() bool { return hub.Clients() == want })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func changeEvent(t *testing.T, typ platform.EventType, table string, row, old any) platform.ChangeEvent {
	t.Helper()
	ev, err := platform.NewChangeEvent(typ, table, row, old, time.Now())
	if err != nil {
		t.Fatalf("NewChangeEvent: %v", err)
	}
	return ev
}

func receive(t *testing.T, c *Client) platform.Frame {
	t.Helper()
	select {
	case f, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
	return platform.Frame{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case f := <-c.send:
		t.Fatalf("unexpected frame on %s", f.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)

	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", hub.clients != nil},
		{"change queue", hub.changes != nil},
		{"Register channel", hub.Register != nil},
		{"Unregister channel", hub.Unregister != nil},
		{"empty clients", hub.Clients() == 0},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s not initialized", c.name)
		}
	}
}

func TestHub_RoutesByFilter(t *testing.T) {
	t.Parallel()
	hub := setupHub(t)

	thread := createTestClient(hub, map[string]platform.Filter{
		"realtime:messages:conversation_id=eq.C1#1": {Table: "messages", Column: "conversation_id", Value: "C1"},
	})
	everything := createTestClient(hub, map[string]platform.Filter{
		"realtime:messages#1": {Table: "messages"},
	})
	registerClient(t, hub, thread)
	registerClient(t, hub, everything)

	hub.Publish(changeEvent(t, platform.EventInsert, "messages",
		map[string]any{"id": "M1", "conversation_id": "C1"}, nil))

	if f := receive(t, thread); f.Topic != "realtime:messages:conversation_id=eq.C1#1" || f.Event != platform.EventChanges {
		t.Errorf("thread frame = %s/%s, want its topic and %s", f.Topic, f.Event, platform.EventChanges)
	}
	f := receive(t, everything)
	var payload platform.ChangesPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Data.Type != platform.EventInsert || payload.Data.Table != "messages" {
		t.Errorf("payload = %s %s, want INSERT messages", payload.Data.Type, payload.Data.Table)
	}

	hub.Publish(changeEvent(t, platform.EventInsert, "messages",
		map[string]any{"id": "M2", "conversation_id": "C2"}, nil))
	receive(t, everything)
	expectNothing(t, thread)

	hub.Publish(changeEvent(t, platform.EventInsert, "listings", map[string]any{"id": "L1"}, nil))
	expectNothing(t, everything)
}

func TestHub_DeleteMatchesOldRecord(t *testing.T) {
	t.Parallel()
	hub := setupHub(t)

	wall := createTestClient(hub, map[string]platform.Filter{
		"realtime:community_posts:community_id=eq.K1#1": {Table: "community_posts", Column: "community_id", Value: "K1"},
	})
	registerClient(t, hub, wall)

	hub.Publish(changeEvent(t, platform.EventDelete, "community_posts", nil,
		map[string]any{"id": "P1", "community_id": "K1"}))
	receive(t, wall)

	hub.Publish(changeEvent(t, platform.EventDelete, "community_posts", nil,
		map[string]any{"id": "P2", "community_id": "K2"}))
	expectNothing(t, wall)
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()
	hub := setupHub(t)

	slow := createTestClient(hub, map[string]platform.Filter{"realtime:listings#1": {Table: "listings"}})
	registerClient(t, hub, slow)

	for i := 0; i <= sendBuffer; i++ {
		hub.Publish(changeEvent(t, platform.EventInsert, "listings", map[string]any{"id": "L"}, nil))
		if i%64 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestHub_PublishJSON(t *testing.T) {
	t.Parallel()
	hub := setupHub(t)

	c := createTestClient(hub, map[string]platform.Filter{"realtime:listings#1": {Table: "listings"}})
	registerClient(t, hub, c)

	data, err := json.Marshal(changeEvent(t, platform.EventUpdate, "listings", map[string]any{"id": "L1"}, map[string]any{"id": "L1"}))
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.PublishJSON(data); err != nil {
		t.Fatalf("PublishJSON = %v, want nil", err)
	}
	receive(t, c)

	if err := hub.PublishJSON([]byte("not json")); err == nil {
		t.Error("PublishJSON(garbage) = nil, want error")
	}
}

func TestHub_RunWithContext_ClosesClients(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	c := createTestClient(hub, nil)
	registerClient(t, hub, c)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client send channel still open after shutdown")
	}
	if hub.Clients() != 0 {
		t.Errorf("Clients = %d, want 0", hub.Clients())
	}
}
