// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/platform"
)

func startServer(t *testing.T, verify TokenVerifier) (*Hub, string) {
	t.Helper()
	hub := NewHub(verify)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	server := httptest.NewServer(Handler(hub, nil))
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime/v1/websocket"
}

func newRealtime(t *testing.T, url, token string) *platform.RealtimeClient {
	t.Helper()
	rc := platform.NewRealtimeClient(url, "anon", func() string { return token }, config.RealtimeConfig{
		HandshakeTimeout:  2 * time.Second,
		HeartbeatInterval: 50 * time.Millisecond,
		EventBuffer:       8,
	})
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func nextEvent(t *testing.T, sub *platform.Subscription) platform.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription ended: %v", sub.Err())
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}
	return platform.ChangeEvent{}
}

func TestRealtime_SubscribeAndReceive(t *testing.T) {
	t.Parallel()
	hub, url := startServer(t, nil)
	rc := newRealtime(t, url, "")

	ctx := context.Background()
	sub, err := rc.Subscribe(ctx, platform.Filter{Table: "messages", Column: "conversation_id", Value: "C1"})
	if err != nil {
		t.Fatalf("Subscribe = %v, want nil", err)
	}
	defer sub.Close()

	hub.Publish(changeEvent(t, platform.EventInsert, "messages",
		map[string]any{"id": "M0", "conversation_id": "C2"}, nil))
	hub.Publish(changeEvent(t, platform.EventInsert, "messages",
		map[string]any{"id": "M1", "conversation_id": "C1"}, nil))

	ev := nextEvent(t, sub)
	if ev.Type != platform.EventInsert || !strings.Contains(string(ev.Record), `"M1"`) {
		t.Errorf("event = %s %s, want INSERT of M1", ev.Type, ev.Record)
	}
}

func TestRealtime_HeartbeatsKeepConnection(t *testing.T) {
	t.Parallel()
	_, url := startServer(t, nil)
	rc := newRealtime(t, url, "")

	sub, err := rc.Subscribe(context.Background(), platform.Filter{Table: "listings"})
	if err != nil {
		t.Fatalf("Subscribe = %v, want nil", err)
	}
	defer sub.Close()

	time.Sleep(200 * time.Millisecond)
	if !rc.Connected() {
		t.Error("Connected = false after heartbeats, want true")
	}
}

func TestRealtime_TokenVerification(t *testing.T) {
	t.Parallel()
	verify := func(token string) (string, error) {
		switch token {
		case "good":
			return "U1", nil
		case "anon-key":
			return "", nil
		}
		return "", errors.New("bad token")
	}
	_, url := startServer(t, verify)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"anonymous", "", false},
		{"anon key", "anon-key", false},
		{"valid token", "good", false},
		{"invalid token", "forged", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newRealtime(t, url, tt.token)
			sub, err := rc.Subscribe(context.Background(), platform.Filter{Table: "listings"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Subscribe error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "invalid access token") {
				t.Errorf("Subscribe error = %v, want invalid access token", err)
			}
			if sub != nil {
				sub.Close()
			}
		})
	}
}

func TestRealtime_LeaveStopsDelivery(t *testing.T) {
	t.Parallel()
	hub, url := startServer(t, nil)
	rc := newRealtime(t, url, "")
	ctx := context.Background()

	kept, err := rc.Subscribe(ctx, platform.Filter{Table: "listings"})
	if err != nil {
		t.Fatal(err)
	}
	defer kept.Close()
	left, err := rc.Subscribe(ctx, platform.Filter{Table: "listings"})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return clientTopics(hub) == 2 })

	left.Close()
	waitFor(t, func() bool { return clientTopics(hub) == 1 })

	hub.Publish(changeEvent(t, platform.EventInsert, "listings", map[string]any{"id": "L1"}, nil))
	nextEvent(t, kept)
}

func clientTopics(hub *Hub) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	n := 0
	for c := range hub.clients {
		n += c.Topics()
	}
	return n
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"native client", nil, "", true},
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"wildcard", []string{"*"}, "http://example.com", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/realtime/v1/websocket", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		up := Upgrader(tt.origins)
		if got := up.CheckOrigin(r); got != tt.want {
			t.Errorf("%s: CheckOrigin = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	if got := sanitize("a\nb\x1bc"); got != "abc" {
		t.Errorf("sanitize = %q, want %q", got, "abc")
	}
	if got := sanitize(strings.Repeat("x", 300)); len(got) != 200 {
		t.Errorf("len(sanitize(300 chars)) = %d, want 200", len(got))
	}
}

func TestClient_JoinRateLimited(t *testing.T) {
	t.Parallel()

	c := createTestClient(NewHub(nil), nil)
	payload, err := json.Marshal(platform.JoinPayload{Config: platform.JoinConfig{
		PostgresChanges: []platform.ChangeSpec{{Event: "*", Schema: "public", Table: "messages"}},
	}})
	if err != nil {
		t.Fatalf("marshal join: %v", err)
	}

	rejected := 0
	for i := 0; i < joinBurst+10; i++ {
		c.handle(platform.Frame{Topic: "realtime:t", Event: platform.EventJoin, Payload: payload})
		var reply platform.ReplyPayload
		if err := json.Unmarshal(receive(t, c).Payload, &reply); err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		if reply.Status == "error" {
			rejected++
		}
	}
	if rejected == 0 {
		t.Errorf("rejected joins = 0, want some after a burst of %d", joinBurst+10)
	}

	// Heartbeats are never limited.
	c.handle(platform.Frame{Topic: platform.HeartbeatTopic, Event: platform.EventHeartbeat})
	var reply platform.ReplyPayload
	if err := json.Unmarshal(receive(t, c).Payload, &reply); err != nil || reply.Status != "ok" {
		t.Errorf("heartbeat reply = %+v, %v, want ok", reply, err)
	}
}
