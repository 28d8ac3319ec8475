// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/models"
)

const testAnonKey = "test-anon-key"

// newTestClient returns a client pointed at handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(
		config.PlatformConfig{URL: server.URL, AnonKey: testAnonKey, RequestTimeout: 5 * time.Second},
		config.RealtimeConfig{HandshakeTimeout: time.Second, HeartbeatInterval: time.Second, EventBuffer: 8},
	)
	t.Cleanup(func() { _ = c.Close() })
	return c, server
}

func signedToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret-test-secret-test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestClient_Select(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != testAnonKey {
			t.Errorf("expected apikey header, got %q", r.Header.Get("apikey"))
		}
		if got := r.URL.Query().Get("conversation_id"); got != "eq.c1" {
			t.Errorf("expected conversation filter, got %q", got)
		}
		if got := r.URL.Query().Get("order"); got != "created_at.asc" {
			t.Errorf("expected order, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"m1","conversation_id":"c1","sender_id":"u1","content":"hi","read":false,"created_at":"2026-01-01T00:00:00Z"}]`)
	})

	msgs, err := SelectAs[models.Message](context.Background(), c, models.TableMessages,
		Where("conversation_id", "c1").OrderBy("created_at", false))
	if err != nil {
		t.Fatalf("SelectAs() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("unexpected rows: %+v", msgs)
	}
}

func TestClient_InsertReturnsRepresentation(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("expected Prefer header, got %q", r.Header.Get("Prefer"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, ok := body["id"]; ok {
			t.Error("insert payload must not carry an id")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"m9","conversation_id":"c1","sender_id":"u1","content":"yo","created_at":"2026-01-01T00:00:00Z"}]`)
	})

	msg, err := InsertAs[models.Message](context.Background(), c, models.TableMessages,
		models.NewMessage{ConversationID: "c1", SenderID: "u1", Content: "yo"})
	if err != nil {
		t.Fatalf("InsertAs() error = %v", err)
	}
	if msg.ID != "m9" {
		t.Errorf("expected server-assigned id m9, got %q", msg.ID)
	}
}

func TestClient_RemoteError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"duplicate key value","code":"23505"}`)
	})

	_, err := c.Insert(context.Background(), "favorites", models.NewFavorite{UserID: "u", ListingID: "l"})
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
	if re.Status != http.StatusConflict || re.Code != "23505" || re.Message != "duplicate key value" {
		t.Errorf("unexpected RemoteError: %+v", re)
	}
	if Message(err) != "duplicate key value" {
		t.Errorf("Message() = %q", Message(err))
	}
}

func TestClient_TransportError(t *testing.T) {
	t.Parallel()

	c := NewClient(
		config.PlatformConfig{URL: "http://127.0.0.1:1", AnonKey: testAnonKey, RequestTimeout: time.Second},
		config.RealtimeConfig{},
	)
	_, err := c.Select(context.Background(), "listings", All())
	var re *RemoteError
	if !errors.As(err, &re) || re.Status != 0 {
		t.Errorf("expected RemoteError with no status, got %v", err)
	}
}

func TestClient_UnfilteredWritesRefused(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	if err := c.Delete(context.Background(), "listings", All()); !IsRemote(err) {
		t.Errorf("expected RemoteError for unfiltered delete, got %v", err)
	}
	if _, err := c.Update(context.Background(), "listings", All(), map[string]any{"status": "sold"}); !IsRemote(err) {
		t.Errorf("expected RemoteError for unfiltered update, got %v", err)
	}
}

func TestClient_SignInSignOut(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	var token string
	var loggedOut bool

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			if r.URL.Query().Get("grant_type") != "password" {
				t.Errorf("expected password grant")
			}
			var creds credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Password != "correct horse" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": token, "expires_in": 3600,
				"user": map[string]any{"id": "u1", "email": creds.Email},
			})
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer "+token {
				t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
			}
			_, _ = io.WriteString(w, `{"id":"u1","email":"reader@example.com"}`)
		case "/auth/v1/logout":
			loggedOut = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	token = signedToken(t, "u1", exp)

	_, err := c.SignIn(context.Background(), "reader@example.com", "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) || !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials AuthError, got %v", err)
	}
	if ae.Message != "Invalid login credentials" {
		t.Errorf("unexpected message %q", ae.Message)
	}

	s, err := c.SignIn(context.Background(), "reader@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("expected expiry from token %v, got %v", exp, s.ExpiresAt)
	}
	if id, err := UserID(c); err != nil || id != "u1" {
		t.Errorf("UserID() = %q, %v", id, err)
	}

	user, err := c.CurrentUser(context.Background())
	if err != nil || user.Email != "reader@example.com" {
		t.Errorf("CurrentUser() = %+v, %v", user, err)
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if !loggedOut {
		t.Error("expected logout request")
	}
	if _, ok := c.Session(); ok {
		t.Error("expected session cleared")
	}
	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestClient_UploadAndPublicURL(t *testing.T) {
	t.Parallel()

	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/listing-images/u1/cover.jpg" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpegdata" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = io.WriteString(w, `{"Key":"listing-images/u1/cover.jpg"}`)
	})

	key, err := c.Upload(context.Background(), "listing-images", "u1/cover.jpg", "image/jpeg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if key != "u1/cover.jpg" {
		t.Errorf("expected key echoed, got %q", key)
	}
	want := server.URL + "/storage/v1/object/public/listing-images/u1/cover.jpg"
	if got := c.PublicURL("listing-images", key); got != want {
		t.Errorf("PublicURL() = %q, want %q", got, want)
	}
}

func TestDecodeErrorBody_PlainText(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down\n")
	})
	_, err := c.Select(context.Background(), "listings", All())
	if !strings.Contains(Message(err), "upstream down") {
		t.Errorf("expected plain text body as message, got %q", Message(err))
	}
}
