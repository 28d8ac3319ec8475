// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package models

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestCommunity_IsAdmin(t *testing.T) {
	t.Parallel()

	c := Community{ID: "c1", CreatorID: "creator", AdminIDs: []string{"alice"}}

	tests := []struct {
		user string
		want bool
	}{
		{"creator", true},
		{"alice", true},
		{"bob", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsAdmin(tt.user); got != tt.want {
			t.Errorf("IsAdmin(%q) = %v, want %v", tt.user, got, tt.want)
		}
	}
}

func TestCommunity_WithAdmin(t *testing.T) {
	t.Parallel()

	c := Community{AdminIDs: []string{"alice", "bob"}}

	added := c.WithAdmin("carol", true)
	if !slices.Equal(added, []string{"alice", "bob", "carol"}) {
		t.Errorf("expected carol appended, got %v", added)
	}
	removed := c.WithAdmin("alice", false)
	if !slices.Equal(removed, []string{"bob"}) {
		t.Errorf("expected alice removed, got %v", removed)
	}
	again := c.WithAdmin("bob", true)
	if !slices.Equal(again, []string{"alice", "bob"}) {
		t.Errorf("expected no duplicate admin, got %v", again)
	}
	if !slices.Equal(c.AdminIDs, []string{"alice", "bob"}) {
		t.Errorf("original admin list was modified: %v", c.AdminIDs)
	}
}

func TestConversation_Counterpart(t *testing.T) {
	t.Parallel()

	seller := &Profile{ID: "s", DisplayName: "Sam"}
	c := Conversation{BuyerID: "b", SellerID: "s", Seller: seller}

	if got := c.Counterpart("b"); got != "s" {
		t.Errorf("expected seller as buyer's counterpart, got %s", got)
	}
	if got := c.Counterpart("s"); got != "b" {
		t.Errorf("expected buyer as seller's counterpart, got %s", got)
	}
	if got := c.CounterpartProfile("b"); got != seller {
		t.Errorf("expected seller profile, got %v", got)
	}
	if c.Has("x") {
		t.Error("expected x not to participate")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		row     Validator
		wantErr bool
	}{
		{"message ok", Message{ID: "m", ConversationID: "c", SenderID: "u"}, false},
		{"message no id", Message{ConversationID: "c", SenderID: "u"}, true},
		{"message no conversation", Message{ID: "m", SenderID: "u"}, true},
		{"post ok", CommunityPost{ID: "p", CommunityID: "c", AuthorID: "u"}, false},
		{"post no author", CommunityPost{ID: "p", CommunityID: "c"}, true},
		{"community no creator", Community{ID: "c"}, true},
		{"listing ok", Listing{ID: "l", SellerID: "s"}, false},
	}
	for _, tt := range tests {
		err := tt.row.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	if err := (Listing{}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
}

func TestClientSideFieldsNotSerialized(t *testing.T) {
	t.Parallel()

	post := CommunityPost{ID: "p", CommunityID: "c", AuthorID: "u", AuthorName: "Ursula", CreatedAt: time.Unix(0, 0).UTC()}
	data, err := json.Marshal(post)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["author_name"]; ok {
		t.Errorf("author_name must not be serialized: %s", data)
	}
}

func TestSession_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	if (&Session{}).Expired(now) {
		t.Error("session without expiry should not be expired")
	}
	if !(&Session{ExpiresAt: now.Add(-time.Minute)}).Expired(now) {
		t.Error("expected past expiry to be expired")
	}
}
