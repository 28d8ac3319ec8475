// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
)

// SessionTTL is how long in-process sessions stay valid.
const SessionTTL = time.Hour

// Ensure Client implements Gateway
var _ platform.Gateway = (*Client)(nil)

// Client is one user's gateway onto an Engine. Reads and subscriptions work
// signed out; writes need a session.
type Client struct {
	engine *Engine

	mu      sync.Mutex
	session *models.Session
	subs    []*platform.Subscription
}

// Engine returns the engine behind the client.
func (c *Client) Engine() *Engine { return c.engine }

func (c *Client) requireSession(op string) error {
	if _, ok := c.Session(); !ok {
		return platform.NotSignedIn(op)
	}
	return nil
}

// Select implements platform.Tables.
func (c *Client) Select(ctx context.Context, table string, q platform.Query) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, platform.Remote(OpSelect, table, err)
	}
	rows, err := c.engine.Select(table, q)
	if err != nil {
		return nil, err
	}
	return encode(OpSelect, table, rows)
}

// Insert implements platform.Tables.
func (c *Client) Insert(ctx context.Context, table string, row any) (json.RawMessage, error) {
	if err := c.requireSession(OpInsert); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, platform.Remote(OpInsert, table, err)
	}
	values, err := toRow(OpInsert, table, row)
	if err != nil {
		return nil, err
	}
	stored, err := c.engine.Insert(table, values)
	if err != nil {
		return nil, err
	}
	return encode(OpInsert, table, stored)
}

// Update implements platform.Tables.
func (c *Client) Update(ctx context.Context, table string, q platform.Query, patch any) (json.RawMessage, error) {
	if err := c.requireSession(OpUpdate); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, platform.Remote(OpUpdate, table, err)
	}
	values, err := toRow(OpUpdate, table, patch)
	if err != nil {
		return nil, err
	}
	rows, err := c.engine.Update(table, q, values)
	if err != nil {
		return nil, err
	}
	return encode(OpUpdate, table, rows)
}

// Delete implements platform.Tables.
func (c *Client) Delete(ctx context.Context, table string, q platform.Query) error {
	if err := c.requireSession(OpDelete); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return platform.Remote(OpDelete, table, err)
	}
	_, err := c.engine.Delete(table, q)
	return err
}

func encode(op, table string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &platform.RemoteError{Op: op, Table: table, Message: "encode rows", Err: err}
	}
	return data, nil
}

// SignUp registers and signs in; the in-process platform confirms emails
// immediately.
func (c *Client) SignUp(_ context.Context, email, password string) (*models.Session, error) {
	user, err := c.engine.Register(email, password)
	if err != nil {
		return nil, err
	}
	return c.open(user), nil
}

// SignIn implements platform.Auth.
func (c *Client) SignIn(_ context.Context, email, password string) (*models.Session, error) {
	user, err := c.engine.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	return c.open(user), nil
}

func (c *Client) open(user models.User) *models.Session {
	s := &models.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(SessionTTL),
		User:         user,
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	out := *s
	return &out
}

// SignOut drops the session and closes the client's subscriptions.
func (c *Client) SignOut(context.Context) error {
	c.mu.Lock()
	c.session = nil
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// ResetPassword accepts any address and never reveals whether it is known.
func (c *Client) ResetPassword(_ context.Context, email string) error {
	logging.Debug().Bool("known", c.engine.KnownEmail(email)).Msg("Password reset requested")
	return nil
}

// Session implements platform.Auth.
func (c *Client) Session() (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.Expired(time.Now()) {
		return nil, false
	}
	s := *c.session
	return &s, true
}

// CurrentUser implements platform.Auth.
func (c *Client) CurrentUser(context.Context) (*models.User, error) {
	s, ok := c.Session()
	if !ok {
		return nil, platform.NotSignedIn("user")
	}
	user, found := c.engine.UserByID(s.User.ID)
	if !found {
		return nil, &platform.AuthError{Op: "user", Message: "user not found", Err: platform.ErrNotSignedIn}
	}
	return &user, nil
}

// Upload implements platform.Storage.
func (c *Client) Upload(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	if err := c.requireSession(OpUpload); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", platform.Remote(OpUpload, bucket, err)
	}
	return c.engine.Put(bucket, key, contentType, data)
}

// PublicURL implements platform.Storage.
func (c *Client) PublicURL(bucket, key string) string {
	return c.engine.PublicURL(bucket, key)
}

// Subscribe implements platform.Realtime.
func (c *Client) Subscribe(ctx context.Context, filter platform.Filter) (*platform.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, platform.Remote(OpSubscribe, filter.Table, err)
	}
	sub, err := c.engine.Subscribe(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	live := c.subs[:0]
	for _, s := range c.subs {
		select {
		case <-s.Done():
		default:
			live = append(live, s)
		}
	}
	c.subs = append(live, sub)
	c.mu.Unlock()
	return sub, nil
}
