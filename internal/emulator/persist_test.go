// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform/memory"
)

func TestBadgerPersister_RoundTrip(t *testing.T) {
	t.Parallel()

	store, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer store.Close()

	row := map[string]any{"id": "l1", "title": "Dune"}
	if err := store.PutRow(models.TableListings, row); err != nil {
		t.Fatalf("PutRow: %v", err)
	}
	if err := store.PutRow(models.TableListings, map[string]any{"title": "no id"}); err == nil {
		t.Error("PutRow without id error = nil, want error")
	}
	if err := store.PutRow(models.TableFavorites, map[string]any{"id": "f1"}); err != nil {
		t.Fatalf("PutRow: %v", err)
	}
	if err := store.DeleteRow(models.TableFavorites, "f1"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if err := store.PutAccount(memory.Account{User: models.User{ID: "u1", Email: "a@b.test"}}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	if err := store.PutObject("avatars", "u1/me.png", memory.Object{ContentType: "image/png", Data: []byte("png")}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(snap.Tables[models.TableListings]); got != 1 {
		t.Errorf("listings = %d, want 1", got)
	}
	if got := len(snap.Tables[models.TableFavorites]); got != 0 {
		t.Errorf("favorites = %d, want 0 after delete", got)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].User.Email != "a@b.test" {
		t.Errorf("accounts = %+v, want one account", snap.Accounts)
	}
	if obj, ok := snap.Objects["avatars/u1/me.png"]; !ok || string(obj.Data) != "png" {
		t.Errorf("objects = %v, want avatars/u1/me.png", snap.Objects)
	}
}

func TestGCService(t *testing.T) {
	t.Parallel()

	store, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer store.Close()

	if err := store.RunGC(); err != nil {
		t.Errorf("RunGC() on a fresh store = %v, want nil", err)
	}

	svc := NewGCService(store, 10*time.Millisecond)
	if svc.String() != "store-gc" {
		t.Errorf("String() = %q, want store-gc", svc.String())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}

	if NewGCService(store, 0).interval != 5*time.Minute {
		t.Error("zero interval did not default to 5m")
	}
}
