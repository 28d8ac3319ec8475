// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/models"
)

// Tables is the row-level surface. Rows travel as raw JSON; SelectAs,
// InsertAs and UpdateAs decode them into model types.
type Tables interface {
	// Select returns a JSON array of matching rows.
	Select(ctx context.Context, table string, q Query) (json.RawMessage, error)
	// Insert persists row and returns the stored row with server-assigned
	// fields (id, created_at).
	Insert(ctx context.Context, table string, row any) (json.RawMessage, error)
	// Update applies patch to matching rows and returns them as a JSON array.
	Update(ctx context.Context, table string, q Query, patch any) (json.RawMessage, error)
	// Delete removes matching rows.
	Delete(ctx context.Context, table string, q Query) error
}

// Auth is the authentication surface.
type Auth interface {
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	// Session returns the held session, if any. It never calls the platform.
	Session() (*models.Session, bool)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Storage is the object storage surface.
type Storage interface {
	// Upload stores data under key in bucket and returns the stored key.
	Upload(ctx context.Context, bucket, key, contentType string, data []byte) (string, error)
	PublicURL(bucket, key string) string
}

// Realtime opens change-feed subscriptions.
type Realtime interface {
	// Subscribe opens a channel for filter. The caller must Close the
	// returned subscription.
	Subscribe(ctx context.Context, filter Filter) (*Subscription, error)
}

// Gateway is the complete remote data surface.
type Gateway interface {
	Tables
	Auth
	Storage
	Realtime
}

// Filter scopes a subscription to one table and, optionally, one equality
// condition on a column.
type Filter struct {
	Table  string
	Column string
	Value  string
}

// String renders the filter as table:column=eq.value.
func (f Filter) String() string {
	if f.Column == "" {
		return f.Table
	}
	return f.Table + ":" + f.Column + "=eq." + f.Value
}

// Matches reports whether a row belongs to the filter.
func (f Filter) Matches(row map[string]any) bool {
	if f.Column == "" {
		return true
	}
	return Condition{Column: f.Column, Op: OpEq, Value: f.Value}.Matches(row)
}

// UserID returns the signed-in user's id or an AuthError.
func UserID(a Auth) (string, error) {
	s, ok := a.Session()
	if !ok || s.User.ID == "" {
		return "", NotSignedIn("session")
	}
	return s.User.ID, nil
}
