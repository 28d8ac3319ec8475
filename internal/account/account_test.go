// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/platform/memory"
	"github.com/tomtom215/bookswap/internal/validation"
)

var testBuckets = config.StorageConfig{ListingBucket: "listing-images", CommunityBucket: "community-images", AvatarBucket: "avatars"}

func newTestService(t *testing.T) (*Service, *memory.Engine) {
	t.Helper()
	eng := memory.MustNew(memory.WithHashCost(bcrypt.MinCost))
	c := eng.Client()
	dir := NewDirectory(c, time.Minute)
	t.Cleanup(dir.Close)
	return NewService(c, testBuckets, dir), eng
}

func TestSignUp_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		form  SignUpForm
		field string
	}{
		{"missing email", SignUpForm{Password: "secret1", DisplayName: "Ann"}, "email"},
		{"bad email", SignUpForm{Email: "ann", Password: "secret1", DisplayName: "Ann"}, "email"},
		{"short password", SignUpForm{Email: "ann@example.com", Password: "123", DisplayName: "Ann"}, "password"},
		{"blank name", SignUpForm{Email: "ann@example.com", Password: "secret1", DisplayName: "   "}, "display_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, eng := newTestService(t)
			_, err := svc.SignUp(context.Background(), tt.form)
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) || !verr.HasField(tt.field) {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if eng.KnownEmail(tt.form.Email) {
				t.Error("validation failure must not reach the platform")
			}
		})
	}
}

func TestSignUp_CreatesProfile(t *testing.T) {
	t.Parallel()

	svc, eng := newTestService(t)
	ctx := context.Background()
	session, err := svc.SignUp(ctx, SignUpForm{Email: " ann@example.com ", Password: "secret1", DisplayName: " Ann "})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	rows := eng.Rows(models.TableProfiles)
	if len(rows) != 1 || rows[0]["id"] != session.User.ID || rows[0]["display_name"] != "Ann" {
		t.Errorf("profiles = %v", rows)
	}
	p, err := svc.MyProfile(ctx)
	if err != nil || p.DisplayName != "Ann" {
		t.Errorf("MyProfile() = %+v, %v", p, err)
	}
}

func TestSignIn_CreatesMissingProfile(t *testing.T) {
	t.Parallel()

	svc, eng := newTestService(t)
	ctx := context.Background()
	if _, err := eng.Register("bob@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SignIn(ctx, SignInForm{Email: "bob@example.com", Password: "wrong"}); !errors.Is(err, platform.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInForm{Email: "bob@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	p, err := svc.MyProfile(ctx)
	if err != nil || p.DisplayName != "bob" {
		t.Errorf("MyProfile() = %+v, %v; want display name bob", p, err)
	}
}

func TestUpdateProfileAndAvatar(t *testing.T) {
	t.Parallel()

	svc, eng := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, SignUpForm{Email: "ann@example.com", Password: "secret1", DisplayName: "Ann"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateProfile(ctx, ProfileForm{DisplayName: ""}); err == nil {
		t.Error("expected validation error for blank display name")
	}
	p, err := svc.UpdateProfile(ctx, ProfileForm{DisplayName: "Ann R.", Bio: "Mostly sci-fi"})
	if err != nil || p.DisplayName != "Ann R." {
		t.Fatalf("UpdateProfile() = %+v, %v", p, err)
	}
	if got, _ := svc.Profile(ctx, p.ID); got.Bio != "Mostly sci-fi" {
		t.Errorf("expected cached profile refreshed, got %+v", got)
	}

	p, err = svc.UploadAvatar(ctx, "me.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	prefix := memory.DefaultPublicBase + "/storage/v1/object/public/avatars/" + p.ID + "/"
	if !strings.HasPrefix(p.AvatarURL, prefix) {
		t.Errorf("AvatarURL = %q, want prefix %q", p.AvatarURL, prefix)
	}
	key := strings.TrimPrefix(p.AvatarURL, memory.DefaultPublicBase+"/storage/v1/object/public/avatars/")
	if _, ok := eng.Get("avatars", key); !ok {
		t.Errorf("expected object %s stored", key)
	}
}

func TestSignedOutCalls(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.MyProfile(ctx); !errors.Is(err, platform.ErrNotSignedIn) {
		t.Errorf("MyProfile() error = %v, want ErrNotSignedIn", err)
	}
	if _, err := svc.UploadAvatar(ctx, "a.png", "image/png", []byte{1}); !platform.IsAuth(err) {
		t.Errorf("UploadAvatar() error = %v, want AuthError", err)
	}
	if err := svc.ResetPassword(ctx, "not-an-email"); err == nil {
		t.Error("expected validation error for reset with bad email")
	}
	if err := svc.ResetPassword(ctx, "someone@example.com"); err != nil {
		t.Errorf("ResetPassword() error = %v", err)
	}
}

func TestDirectory_ManyBatchesMisses(t *testing.T) {
	t.Parallel()

	eng := memory.MustNew(memory.WithHashCost(bcrypt.MinCost))
	for _, p := range []map[string]any{
		{"id": "u1", "display_name": "Ann"},
		{"id": "u2", "display_name": "Bob"},
	} {
		if _, err := eng.Insert(models.TableProfiles, p); err != nil {
			t.Fatal(err)
		}
	}
	dir := NewDirectory(eng.Client(), time.Minute)
	defer dir.Close()
	ctx := context.Background()

	if name := dir.DisplayName(ctx, "u1"); name != "Ann" {
		t.Errorf("DisplayName(u1) = %q", name)
	}

	// Only u2 and u3 miss the cache; a failure on that batch proves u1 came from cache.
	eng.FailNext(memory.OpSelect, models.TableProfiles)
	got, err := dir.Many(ctx, []string{"u1", "u2", "u3", "u1"})
	if err == nil {
		t.Fatal("expected injected failure on the batch")
	}
	if len(got) != 1 || got["u1"].DisplayName != "Ann" {
		t.Errorf("Many() partial = %v", got)
	}

	got, err = dir.Many(ctx, []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["u2"].DisplayName != "Bob" {
		t.Errorf("Many() = %v, want u1 and u2", got)
	}
	if name := dir.DisplayName(ctx, "u3"); name != "" {
		t.Errorf("DisplayName(unknown) = %q, want empty", name)
	}
}
