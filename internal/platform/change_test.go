// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/bookswap/internal/models"
)

func TestDecodeChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ev       ChangeEvent
		wantKind EventType
		wantErr  bool
	}{
		{
			name:     "insert",
			ev:       ChangeEvent{Type: EventInsert, Table: "messages", Record: []byte(`{"id":"m1","conversation_id":"c1","sender_id":"u1","content":"hi","created_at":"2026-01-01T00:00:00Z"}`)},
			wantKind: EventInsert,
		},
		{
			name:     "update",
			ev:       ChangeEvent{Type: EventUpdate, Table: "messages", Record: []byte(`{"id":"m1","conversation_id":"c1","sender_id":"u1","read":true}`)},
			wantKind: EventUpdate,
		},
		{
			name:     "delete",
			ev:       ChangeEvent{Type: EventDelete, Table: "messages", OldRecord: []byte(`{"id":"m1"}`)},
			wantKind: EventDelete,
		},
		{
			name:    "insert without record",
			ev:      ChangeEvent{Type: EventInsert, Table: "messages"},
			wantErr: true,
		},
		{
			name:    "insert missing conversation",
			ev:      ChangeEvent{Type: EventInsert, Table: "messages", Record: []byte(`{"id":"m1","sender_id":"u1"}`)},
			wantErr: true,
		},
		{
			name:    "insert wrong shape",
			ev:      ChangeEvent{Type: EventInsert, Table: "messages", Record: []byte(`{"id":42}`)},
			wantErr: true,
		},
		{
			name:    "delete without id",
			ev:      ChangeEvent{Type: EventDelete, Table: "messages", OldRecord: []byte(`{}`)},
			wantErr: true,
		},
		{
			name:    "unknown type",
			ev:      ChangeEvent{Type: "TRUNCATE", Table: "messages"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			change, err := DecodeChange[models.Message](tt.ev)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChange) {
					t.Errorf("expected ErrInvalidChange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeChange() error = %v", err)
			}
			if change.Kind() != tt.wantKind {
				t.Errorf("Kind() = %s, want %s", change.Kind(), tt.wantKind)
			}
		})
	}
}

func TestDecodeChange_Variants(t *testing.T) {
	t.Parallel()

	ins, err := DecodeChange[models.CommunityPost](ChangeEvent{
		Type:   EventInsert,
		Record: []byte(`{"id":"p1","community_id":"c1","author_id":"u1","content":"hello"}`),
	})
	if err != nil {
		t.Fatalf("DecodeChange() error = %v", err)
	}
	switch c := ins.(type) {
	case Inserted[models.CommunityPost]:
		if c.Row.Content != "hello" {
			t.Errorf("expected content hello, got %q", c.Row.Content)
		}
	default:
		t.Fatalf("expected Inserted, got %T", ins)
	}

	del, err := DecodeChange[models.CommunityPost](ChangeEvent{Type: EventDelete, OldRecord: []byte(`{"id":"p9"}`)})
	if err != nil {
		t.Fatalf("DecodeChange() error = %v", err)
	}
	if d, ok := del.(Deleted[models.CommunityPost]); !ok || d.ID != "p9" {
		t.Errorf("expected Deleted p9, got %#v", del)
	}
}

func TestNewChangeEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev, err := NewChangeEvent(EventInsert, "messages", models.Message{ID: "m1", ConversationID: "c1", SenderID: "u1"}, nil, at)
	if err != nil {
		t.Fatalf("NewChangeEvent() error = %v", err)
	}
	if ev.OldRecord != nil {
		t.Errorf("expected no old record, got %s", ev.OldRecord)
	}
	change, err := DecodeChange[models.Message](ev)
	if err != nil {
		t.Fatalf("DecodeChange() error = %v", err)
	}
	if c, ok := change.(Inserted[models.Message]); !ok || c.Row.ID != "m1" {
		t.Errorf("expected Inserted m1, got %#v", change)
	}
}
