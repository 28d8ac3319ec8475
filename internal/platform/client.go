// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
client.go - Platform REST, Auth and Storage Client

Speaks the hosted platform's HTTP surfaces:

	/rest/v1/{table}                    row select/insert/update/delete
	/auth/v1/{signup,token,logout,...}  password auth
	/storage/v1/object/{bucket}/{key}   object upload and public URLs

Every request carries the apikey header; requests made while signed in also
carry the access token as a bearer credential. Failed calls are returned as
*RemoteError or *AuthError and are never retried.
*/

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/metrics"
	"github.com/tomtom215/bookswap/internal/models"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Ensure Client implements Gateway
var _ Gateway = (*Client)(nil)

// Client is the HTTP gateway to the platform.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	realtime   *RealtimeClient

	sessionMu sync.RWMutex
	session   *models.Session
}

// NewClient creates a platform client. The realtime connection is opened on
// the first Subscribe.
func NewClient(pc config.PlatformConfig, rc config.RealtimeConfig) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(pc.URL, "/"),
		anonKey: pc.AnonKey,
		httpClient: &http.Client{
			Timeout: pc.RequestTimeout,
		},
	}
	c.realtime = NewRealtimeClient(pc.RealtimeURL(), pc.AnonKey, c.accessToken, rc)
	return c
}

// Close releases the realtime connection.
func (c *Client) Close() error {
	return c.realtime.Close()
}

// accessToken returns the bearer credential for the current caller.
func (c *Client) accessToken() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

// ===================================================================================================
// Tables
// ===================================================================================================

// Select returns a JSON array of rows matching q.
func (c *Client) Select(ctx context.Context, table string, q Query) (json.RawMessage, error) {
	params := q.Values()
	params.Set("select", "*")

	var rows json.RawMessage
	err := c.do(ctx, request{
		op: "select", table: table, method: http.MethodGet,
		path: "/rest/v1/" + url.PathEscape(table), query: params,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert stores row and returns the persisted row.
func (c *Client) Insert(ctx context.Context, table string, row any) (json.RawMessage, error) {
	var rows []json.RawMessage
	err := c.do(ctx, request{
		op: "insert", table: table, method: http.MethodPost,
		path: "/rest/v1/" + url.PathEscape(table), body: row,
		headers: map[string]string{"Prefer": "return=representation"},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &RemoteError{Op: "insert", Table: table, Message: "no row returned"}
	}
	return rows[0], nil
}

// Update patches rows matching q and returns them.
func (c *Client) Update(ctx context.Context, table string, q Query, patch any) (json.RawMessage, error) {
	if len(q.Conditions) == 0 {
		return nil, &RemoteError{Op: "update", Table: table, Message: "update requires a filter"}
	}
	var rows json.RawMessage
	err := c.do(ctx, request{
		op: "update", table: table, method: http.MethodPatch,
		path: "/rest/v1/" + url.PathEscape(table), query: q.Values(), body: patch,
		headers: map[string]string{"Prefer": "return=representation"},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes rows matching q. An unfiltered delete is refused.
func (c *Client) Delete(ctx context.Context, table string, q Query) error {
	if len(q.Conditions) == 0 {
		return &RemoteError{Op: "delete", Table: table, Message: "delete requires a filter"}
	}
	return c.do(ctx, request{
		op: "delete", table: table, method: http.MethodDelete,
		path: "/rest/v1/" + url.PathEscape(table), query: q.Values(),
	}, nil)
}

// ===================================================================================================
// Auth
// ===================================================================================================

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         models.User `json:"user"`

	// Sign-up without auto-confirm returns the bare user.
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp registers an account. When the platform confirms immediately the
// returned session is held; otherwise the session has no access token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, request{
		op: "signup", method: http.MethodPost, path: "/auth/v1/signup",
		body: credentials{Email: email, Password: password}, auth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session()
	if s.AccessToken != "" {
		c.setSession(s)
	}
	return s, nil
}

// SignIn authenticates with email and password and holds the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, request{
		op: "signin", method: http.MethodPost, path: "/auth/v1/token",
		query: url.Values{"grant_type": {"password"}},
		body:  credentials{Email: email, Password: password}, auth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &AuthError{Op: "signin", Message: "no access token returned"}
	}
	s := resp.session()
	c.setSession(s)
	return s, nil
}

// SignOut ends the session locally and on the platform. Open subscriptions
// are closed because they were joined with the old token.
func (c *Client) SignOut(ctx context.Context) error {
	if _, ok := c.Session(); !ok {
		return nil
	}
	err := c.do(ctx, request{
		op: "signout", method: http.MethodPost, path: "/auth/v1/logout", auth: true,
	}, nil)
	c.setSession(nil)
	if cerr := c.realtime.Close(); cerr != nil {
		logging.Warn().Err(cerr).Msg("Failed to close realtime connection on sign-out")
	}
	return err
}

// ResetPassword asks the platform to send a password reset email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, request{
		op: "recover", method: http.MethodPost, path: "/auth/v1/recover",
		body: map[string]string{"email": email}, auth: true,
	}, nil)
}

// Session returns the held session.
func (c *Client) Session() (*models.Session, bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	if c.session == nil {
		return nil, false
	}
	s := *c.session
	return &s, true
}

// CurrentUser fetches the signed-in user from the platform.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	if _, ok := c.Session(); !ok {
		return nil, NotSignedIn("user")
	}
	var user models.User
	if err := c.do(ctx, request{op: "user", method: http.MethodGet, path: "/auth/v1/user", auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) setSession(s *models.Session) {
	c.sessionMu.Lock()
	c.session = s
	c.sessionMu.Unlock()
}

func (r sessionResponse) session() *models.Session {
	user := r.User
	if user.ID == "" {
		user = models.User{ID: r.ID, Email: r.Email}
	}
	s := &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         user,
	}
	s.ExpiresAt = tokenExpiry(r.AccessToken)
	if s.ExpiresAt.IsZero() && r.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// tokenExpiry reads the exp claim without verifying the signature; the
// platform verifies tokens, the client only needs to know when to re-auth.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// ===================================================================================================
// Storage
// ===================================================================================================

// Upload stores data under bucket/key.
func (c *Client) Upload(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	var resp struct {
		Key string `json:"Key"`
	}
	err := c.do(ctx, request{
		op: "upload", table: bucket, method: http.MethodPost,
		path: "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeKey(key),
		raw:  data, contentType: contentType,
	}, &resp)
	if err != nil {
		return "", err
	}
	return key, nil
}

// PublicURL returns the public address of a stored object.
func (c *Client) PublicURL(bucket, key string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ===================================================================================================
// Realtime
// ===================================================================================================

// Subscribe opens a change feed over the realtime connection.
func (c *Client) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	return c.realtime.Subscribe(ctx, filter)
}

// ===================================================================================================
// Transport
// ===================================================================================================

type request struct {
	op          string
	table       string
	method      string
	path        string
	query       url.Values
	body        any
	raw         []byte
	contentType string
	headers     map[string]string
	auth        bool // auth endpoint: failures are AuthError
}

// do performs one request and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordGatewayRequest(r.op, r.table, time.Since(start), err)
	}()

	fullURL := c.baseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}

	var body io.Reader = http.NoBody
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
	case r.body != nil:
		data, merr := json.Marshal(r.body)
		if merr != nil {
			return c.fail(r, 0, "", fmt.Sprintf("failed to encode request: %v", merr), merr)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return c.fail(r, 0, "", "failed to create request", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken())
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(r, 0, "", err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	logging.Debug().
		Str("op", r.op).
		Str("table", r.table).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Platform request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, msg := decodeErrorBody(resp)
		return c.fail(r, resp.StatusCode, code, msg, nil)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return c.fail(r, resp.StatusCode, "", "malformed response", err)
	}
	return nil
}

func (c *Client) fail(r request, status int, code, msg string, cause error) error {
	if r.auth {
		ae := &AuthError{Op: r.op, Message: msg, Err: cause}
		if r.op == "signin" && (status == http.StatusBadRequest || status == http.StatusUnauthorized) {
			ae.Err = ErrInvalidCredentials
		}
		return ae
	}
	if status == http.StatusUnauthorized {
		return &AuthError{Op: r.op, Message: msg, Err: ErrNotSignedIn}
	}
	return &RemoteError{Op: r.op, Table: r.table, Status: status, Code: code, Message: msg, Err: cause}
}

// decodeErrorBody extracts the platform's error text. REST, auth and storage
// use different field names.
func decodeErrorBody(resp *http.Response) (code, message string) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return "", http.StatusText(resp.StatusCode)
	}
	var body struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Code             any    `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	if body.Code != nil {
		code = fmt.Sprint(body.Code)
	}
	for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if m != "" {
			return code, m
		}
	}
	return code, http.StatusText(resp.StatusCode)
}
