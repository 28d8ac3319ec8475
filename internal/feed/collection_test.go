// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package feed

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/bookswap/internal/models"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

func msg(id string, minutes int) models.Message {
	return models.Message{ID: id, ConversationID: "c1", SenderID: "u1", Content: id, CreatedAt: at(minutes)}
}

func post(id string, minutes int) models.CommunityPost {
	return models.CommunityPost{ID: id, CommunityID: "w1", AuthorID: "u1", Content: id, CreatedAt: at(minutes)}
}

func ids[T models.Row](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Key()
	}
	return out
}

func TestCollection_AscendingOutOfOrder(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.Message](Ascending)
	for _, m := range []models.Message{msg("m3", 3), msg("m1", 1), msg("m4", 4), msg("m2", 2)} {
		if got := c.Insert(m); got != Applied {
			t.Fatalf("Insert(%s) = %s, want applied", m.ID, got)
		}
	}

	items := c.Items()
	for i := 1; i < len(items); i++ {
		if !items[i-1].CreatedAt.Before(items[i].CreatedAt) {
			t.Errorf("items not strictly ascending at %d: %v", i, ids(items))
		}
	}
	if got := fmt.Sprint(ids(items)); got != "[m1 m2 m3 m4]" {
		t.Errorf("order = %s, want [m1 m2 m3 m4]", got)
	}
}

func TestCollection_DescendingPosts(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.CommunityPost](Descending)
	c.Merge([]models.CommunityPost{post("p2", 2), post("p1", 1)})
	c.Insert(post("p4", 4))
	c.Insert(post("p3", 3))

	items := c.Items()
	for i := 1; i < len(items); i++ {
		if !items[i-1].CreatedAt.After(items[i].CreatedAt) {
			t.Errorf("items not strictly descending at %d: %v", i, ids(items))
		}
	}
	if got := fmt.Sprint(ids(items)); got != "[p4 p3 p2 p1]" {
		t.Errorf("order = %s, want [p4 p3 p2 p1]", got)
	}
}

func TestCollection_TiesKeepArrivalOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order Order
	}{
		{"ascending", Ascending},
		{"descending", Descending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCollection[models.Message](tt.order)
			c.Merge([]models.Message{msg("a", 5), msg("b", 5)})
			c.Insert(msg("c", 5))
			if got := fmt.Sprint(ids(c.Items())); got != "[a b c]" {
				t.Errorf("order = %s, want [a b c]", got)
			}
		})
	}
}

func TestCollection_BulkThenInsertThenDuplicate(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.Message](Ascending)
	c.Merge([]models.Message{msg("A", 1), msg("B", 2)})

	if got := c.Insert(msg("C", 3)); got != Applied {
		t.Errorf("Insert(C) = %s, want applied", got)
	}
	if got := c.Insert(msg("B", 2)); got != Duplicate {
		t.Errorf("Insert(B) = %s, want duplicate", got)
	}
	if got := fmt.Sprint(ids(c.Items())); got != "[A B C]" || c.Len() != 3 {
		t.Errorf("items = %s (len %d), want [A B C] len 3", got, c.Len())
	}
}

func TestCollection_DeleteUnknownIsNoop(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.CommunityPost](Descending)
	c.Insert(post("P1", 1))

	if got := c.Remove("P9"); got != Ignored {
		t.Errorf("Remove(P9) = %s, want ignored", got)
	}
	if got := c.Insert(post("P1", 1)); got != Duplicate {
		t.Errorf("re-insert P1 = %s, want duplicate", got)
	}
	if got := fmt.Sprint(ids(c.Items())); got != "[P1]" {
		t.Errorf("items = %s, want [P1]", got)
	}
}

func TestCollection_TombstoneBlocksStaleBaseline(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.Message](Ascending)
	c.Insert(msg("m1", 1))
	c.Remove("m1")

	if applied := c.Merge([]models.Message{msg("m1", 1), msg("m2", 2)}); applied != 1 {
		t.Errorf("Merge() applied = %d, want 1", applied)
	}
	if got := fmt.Sprint(ids(c.Items())); got != "[m2]" {
		t.Errorf("items = %s, want [m2]", got)
	}
	if got := c.Insert(msg("m1", 1)); got != Tombstoned {
		t.Errorf("Insert(m1) = %s, want tombstoned", got)
	}
}

func TestCollection_DropAllowsReinsert(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.Message](Ascending)
	c.Insert(msg("m1", 1))

	if got := c.Drop("m1"); got != Applied {
		t.Errorf("Drop(m1) = %s, want applied", got)
	}
	if got := c.Drop("m1"); got != Ignored {
		t.Errorf("second Drop(m1) = %s, want ignored", got)
	}
	if got := c.Insert(msg("m1", 1)); got != Applied {
		t.Errorf("Insert after Drop = %s, want applied", got)
	}
}

func TestCollection_ReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	c := NewCollection[models.Message](Ascending)
	c.Merge([]models.Message{msg("a", 1), msg("b", 2), msg("c", 3)})

	updated := msg("b", 2)
	updated.Read = true
	if got := c.Replace(updated); got != Applied {
		t.Fatalf("Replace() = %s, want applied", got)
	}
	got, _ := c.Get("b")
	if !got.Read {
		t.Error("expected replaced row to be read")
	}
	if order := fmt.Sprint(ids(c.Items())); order != "[a b c]" {
		t.Errorf("order = %s, want [a b c]", order)
	}
	if got := c.Replace(msg("zz", 9)); got != Ignored {
		t.Errorf("Replace(unknown) = %s, want ignored", got)
	}
}

// op is one committed change in a generated history.
type op struct {
	insert bool
	row    models.Message
}

// TestCollection_AnyInterleavingConverges replays random histories where the
// baseline snapshot is taken at one point in commit order and merged at an
// unrelated point in event delivery.
func TestCollection_AnyInterleavingConverges(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 500; trial++ {
		var history []op
		var alive []models.Message
		for i := 0; i < 12; i++ {
			if len(alive) > 0 && rng.Intn(3) == 0 {
				k := rng.Intn(len(alive))
				history = append(history, op{insert: false, row: alive[k]})
				alive = append(alive[:k], alive[k+1:]...)
				continue
			}
			m := msg(fmt.Sprintf("m%02d", i), i)
			history = append(history, op{insert: true, row: m})
			alive = append(alive, m)
		}

		snapshotAt := rng.Intn(len(history) + 1)
		mergeAt := rng.Intn(len(history) + 1)
		baseline := replay(history[:snapshotAt])

		c := NewCollection[models.Message](Ascending)
		for i := 0; i <= len(history); i++ {
			if i == mergeAt {
				c.Merge(baseline)
			}
			if i == len(history) {
				break
			}
			if h := history[i]; h.insert {
				c.Insert(h.row)
			} else {
				c.Remove(h.row.ID)
			}
		}

		want := ids(replay(history))
		got := ids(c.Items())
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("trial %d (snapshot %d, merge %d): got %v, want %v", trial, snapshotAt, mergeAt, got, want)
		}
	}
}

// replay returns the rows alive after history, oldest first.
func replay(history []op) []models.Message {
	state := map[string]models.Message{}
	for _, h := range history {
		if h.insert {
			state[h.row.ID] = h.row
		} else {
			delete(state, h.row.ID)
		}
	}
	out := make([]models.Message, 0, len(state))
	for _, m := range state {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
