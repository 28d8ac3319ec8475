// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package memory

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
)

// DefaultPublicBase prefixes public object URLs when no base is configured.
const DefaultPublicBase = "memory://platform"

// uniqueKeys are the column sets that must be unique per table, besides id.
var uniqueKeys = map[string][]string{
	models.TableFavorites:        {"user_id", "listing_id"},
	models.TableCommunityMembers: {"community_id", "user_id"},
	models.TableConversations:    {"listing_id", "buyer_id", "seller_id"},
}

// immutableColumns cannot be changed by Update.
var immutableColumns = []string{"id", "created_at"}

// Object is a stored blob.
type Object struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Account is a registered user with a password hash.
type Account struct {
	User         models.User `json:"user"`
	PasswordHash []byte      `json:"password_hash"`
}

// ChangeHook observes every committed change.
type ChangeHook func(ev platform.ChangeEvent)

// Engine holds the platform state shared by all clients.
type Engine struct {
	mu       sync.RWMutex
	tables   map[string][]map[string]any
	accounts map[string]*Account // by lowercased email
	objects  map[string]Object   // by bucket/key
	subs     map[*platform.Subscription]struct{}
	hooks    []ChangeHook
	faults   []*fault
	last     time.Time

	now        func() time.Time
	buffer     int
	hashCost   int
	publicBase string
	persister  Persister
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for created_at values.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBuffer sets the per-subscription event buffer.
func WithBuffer(n int) Option {
	return func(e *Engine) { e.buffer = n }
}

// WithHashCost sets the bcrypt cost for passwords.
func WithHashCost(cost int) Option {
	return func(e *Engine) { e.hashCost = cost }
}

// WithPublicBase sets the base URL of public object links.
func WithPublicBase(base string) Option {
	return func(e *Engine) { e.publicBase = strings.TrimSuffix(base, "/") }
}

// WithPersister makes every write durable through p. State already held by p
// is loaded by New.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persister = p }
}

// New creates an engine. It returns an error only when a persister fails to
// load.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		tables:     make(map[string][]map[string]any),
		accounts:   make(map[string]*Account),
		objects:    make(map[string]Object),
		subs:       make(map[*platform.Subscription]struct{}),
		now:        time.Now,
		buffer:     256,
		hashCost:   bcrypt.DefaultCost,
		publicBase: DefaultPublicBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.persister != nil {
		if err := e.restore(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustNew is New for callers without a persister.
func MustNew(opts ...Option) *Engine {
	e, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) restore() error {
	snap, err := e.persister.Load()
	if err != nil {
		return fmt.Errorf("load persisted state: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for table, rows := range snap.Tables {
		e.tables[table] = platform.Query{Orders: []platform.Order{{Column: "created_at"}}}.Apply(rows)
	}
	for i := range snap.Accounts {
		acct := snap.Accounts[i]
		e.accounts[strings.ToLower(acct.User.Email)] = &acct
	}
	for k, obj := range snap.Objects {
		e.objects[k] = obj
	}
	logging.Info().
		Int("tables", len(snap.Tables)).
		Int("accounts", len(snap.Accounts)).
		Int("objects", len(snap.Objects)).
		Msg("Restored platform state")
	return nil
}

// OnChange registers a hook called after every committed change.
func (e *Engine) OnChange(h ChangeHook) {
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
}

// Client returns a new signed-out client of this engine.
func (e *Engine) Client() *Client {
	return &Client{engine: e}
}

// stamp returns a strictly increasing UTC time so created_at orders writes.
func (e *Engine) stamp() time.Time {
	t := e.now().UTC()
	if !t.After(e.last) {
		t = e.last.Add(time.Microsecond)
	}
	e.last = t
	return t
}

// ===================================================================================================
// Tables
// ===================================================================================================

// Select returns copies of the rows of table matching q.
func (e *Engine) Select(table string, q platform.Query) ([]map[string]any, error) {
	if err := e.checkFault(OpSelect, table); err != nil {
		return nil, err
	}
	if !knownTable(table) {
		return nil, unknownTable(OpSelect, table)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	rows := q.Apply(e.tables[table])
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out, nil
}

// Insert stores row, assigning id and created_at when absent.
func (e *Engine) Insert(table string, row map[string]any) (map[string]any, error) {
	if err := e.checkFault(OpInsert, table); err != nil {
		return nil, err
	}
	if !knownTable(table) {
		return nil, unknownTable(OpInsert, table)
	}

	e.mu.Lock()
	stored := cloneRow(row)
	now := e.stamp()
	if id, _ := stored["id"].(string); id == "" {
		stored["id"] = uuid.NewString()
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = now.Format(time.RFC3339Nano)
	}
	if err := e.checkUnique(table, stored, ""); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := e.persistRow(OpInsert, table, stored); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.tables[table] = append(e.tables[table], stored)
	out := cloneRow(stored)
	e.mu.Unlock()

	e.publish(platform.EventInsert, table, out, nil, now)
	return out, nil
}

// Update patches every row matching q and returns the updated rows.
func (e *Engine) Update(table string, q platform.Query, patch map[string]any) ([]map[string]any, error) {
	if err := e.checkFault(OpUpdate, table); err != nil {
		return nil, err
	}
	if !knownTable(table) {
		return nil, unknownTable(OpUpdate, table)
	}
	if len(q.Conditions) == 0 {
		return nil, &platform.RemoteError{Op: OpUpdate, Table: table, Status: http.StatusBadRequest, Message: "UPDATE requires a WHERE clause"}
	}
	for _, col := range immutableColumns {
		if _, ok := patch[col]; ok {
			return nil, &platform.RemoteError{Op: OpUpdate, Table: table, Status: http.StatusBadRequest, Message: fmt.Sprintf("column %q cannot be updated", col)}
		}
	}

	e.mu.Lock()
	now := e.stamp()
	var changed []map[string]any
	for i, row := range e.tables[table] {
		if !q.Matches(row) {
			continue
		}
		next := cloneRow(row)
		for k, v := range patch {
			next[k] = v
		}
		id, _ := next["id"].(string)
		if err := e.checkUnique(table, next, id); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		if err := e.persistRow(OpUpdate, table, next); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.tables[table][i] = next
		changed = append(changed, cloneRow(next))
	}
	e.mu.Unlock()

	for _, row := range changed {
		e.publish(platform.EventUpdate, table, row, map[string]any{"id": row["id"]}, now)
	}
	if changed == nil {
		changed = []map[string]any{}
	}
	return changed, nil
}

// Delete removes every row matching q and returns the removed rows.
func (e *Engine) Delete(table string, q platform.Query) ([]map[string]any, error) {
	if err := e.checkFault(OpDelete, table); err != nil {
		return nil, err
	}
	if !knownTable(table) {
		return nil, unknownTable(OpDelete, table)
	}
	if len(q.Conditions) == 0 {
		return nil, &platform.RemoteError{Op: OpDelete, Table: table, Status: http.StatusBadRequest, Message: "DELETE requires a WHERE clause"}
	}

	e.mu.Lock()
	now := e.stamp()
	var removed []map[string]any
	kept := e.tables[table][:0:0]
	for _, row := range e.tables[table] {
		if !q.Matches(row) {
			kept = append(kept, row)
			continue
		}
		id, _ := row["id"].(string)
		if e.persister != nil {
			if err := e.persister.DeleteRow(table, id); err != nil {
				e.mu.Unlock()
				return nil, persistError(OpDelete, table, err)
			}
		}
		removed = append(removed, row)
	}
	e.tables[table] = kept
	e.mu.Unlock()

	for _, row := range removed {
		e.publish(platform.EventDelete, table, nil, row, now)
	}
	return removed, nil
}

// Rows returns a copy of every row in table in insertion order.
func (e *Engine) Rows(table string) []map[string]any {
	rows, _ := e.Select(table, platform.All())
	return rows
}

func (e *Engine) checkUnique(table string, row map[string]any, self string) error {
	id, _ := row["id"].(string)
	cols := uniqueKeys[table]
	for _, other := range e.tables[table] {
		otherID, _ := other["id"].(string)
		if otherID == self && self != "" {
			continue
		}
		if otherID == id {
			return conflict(table, "id")
		}
		if len(cols) > 0 && sameColumns(row, other, cols) {
			return conflict(table, strings.Join(cols, ", "))
		}
	}
	return nil
}

func sameColumns(a, b map[string]any, cols []string) bool {
	for _, c := range cols {
		if platform.CompareValues(a[c], b[c]) != 0 {
			return false
		}
	}
	return true
}

func conflict(table, cols string) error {
	return &platform.RemoteError{
		Op: OpInsert, Table: table, Status: http.StatusConflict, Code: "23505",
		Message: fmt.Sprintf("duplicate key value violates unique constraint on %s (%s)", table, cols),
	}
}

func unknownTable(op, table string) error {
	return &platform.RemoteError{Op: op, Table: table, Status: http.StatusNotFound, Code: "42P01", Message: fmt.Sprintf("relation %q does not exist", table)}
}

func knownTable(table string) bool {
	for _, t := range models.Tables {
		if t == table {
			return true
		}
	}
	return false
}

func (e *Engine) persistRow(op, table string, row map[string]any) error {
	if e.persister == nil {
		return nil
	}
	if err := e.persister.PutRow(table, row); err != nil {
		return persistError(op, table, err)
	}
	return nil
}

func persistError(op, table string, err error) error {
	return &platform.RemoteError{Op: op, Table: table, Status: http.StatusInternalServerError, Message: "storage failure", Err: err}
}

// cloneRow copies a row one level deep; nested slices are copied too so
// callers cannot alias engine state.
func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}

// toRow converts an insert or patch payload into a row map.
func toRow(op, table string, v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return cloneRow(m), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &platform.RemoteError{Op: op, Table: table, Status: http.StatusBadRequest, Message: "invalid row", Err: err}
	}
	row := map[string]any{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, &platform.RemoteError{Op: op, Table: table, Status: http.StatusBadRequest, Message: "row must be a JSON object", Err: err}
	}
	return row, nil
}

// ===================================================================================================
// Realtime
// ===================================================================================================

// Subscribe opens a subscription for filter on the engine's change stream.
func (e *Engine) Subscribe(filter platform.Filter) (*platform.Subscription, error) {
	if err := e.checkFault(OpSubscribe, filter.Table); err != nil {
		return nil, err
	}
	if !knownTable(filter.Table) {
		return nil, unknownTable(OpSubscribe, filter.Table)
	}
	var sub *platform.Subscription
	sub = platform.NewSubscription(filter, e.buffer, func() {
		e.mu.Lock()
		delete(e.subs, sub)
		e.mu.Unlock()
	})
	e.mu.Lock()
	e.subs[sub] = struct{}{}
	e.mu.Unlock()
	return sub, nil
}

// Subscribers returns the number of open subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// publish delivers a change to matching subscriptions and hooks. It must be
// called without e.mu held: Push blocks while a subscriber's buffer is full.
func (e *Engine) publish(typ platform.EventType, table string, newRow, oldRow map[string]any, at time.Time) {
	// Typed nil maps must not reach NewChangeEvent as non-nil interfaces.
	var record, old any
	if newRow != nil {
		record = newRow
	}
	if oldRow != nil {
		old = oldRow
	}
	ev, err := platform.NewChangeEvent(typ, table, record, old, at)
	if err != nil {
		logging.Error().Err(err).Str("table", table).Msg("Failed to encode change event")
		return
	}

	match := newRow
	if typ == platform.EventDelete {
		match = oldRow
	}

	e.mu.RLock()
	targets := make([]*platform.Subscription, 0, len(e.subs))
	for sub := range e.subs {
		f := sub.Filter()
		if f.Table == table && f.Matches(match) {
			targets = append(targets, sub)
		}
	}
	hooks := append([]ChangeHook(nil), e.hooks...)
	e.mu.RUnlock()

	for _, sub := range targets {
		sub.Push(ev)
	}
	for _, h := range hooks {
		h(ev)
	}
}

// ===================================================================================================
// Accounts
// ===================================================================================================

// Register creates an account. The email must be unused.
func (e *Engine) Register(email, password string) (models.User, error) {
	if err := e.checkFault(OpSignUp, ""); err != nil {
		return models.User{}, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, &platform.AuthError{Op: OpSignUp, Message: "a valid email is required"}
	}
	if len(password) < 6 {
		return models.User{}, &platform.AuthError{Op: OpSignUp, Message: "password should be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := e.accounts[key]; exists {
		return models.User{}, &platform.AuthError{Op: OpSignUp, Message: "user already registered"}
	}
	acct := &Account{
		User:         models.User{ID: uuid.NewString(), Email: email, CreatedAt: e.stamp()},
		PasswordHash: hash,
	}
	if e.persister != nil {
		if err := e.persister.PutAccount(*acct); err != nil {
			return models.User{}, fmt.Errorf("persist account: %w", err)
		}
	}
	e.accounts[key] = acct
	return acct.User, nil
}

// Authenticate checks credentials and returns the user.
func (e *Engine) Authenticate(email, password string) (models.User, error) {
	if err := e.checkFault(OpSignIn, ""); err != nil {
		return models.User{}, err
	}
	e.mu.RLock()
	acct, ok := e.accounts[strings.ToLower(strings.TrimSpace(email))]
	e.mu.RUnlock()
	if !ok {
		return models.User{}, &platform.AuthError{Op: OpSignIn, Message: "Invalid login credentials", Err: platform.ErrInvalidCredentials}
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return models.User{}, &platform.AuthError{Op: OpSignIn, Message: "Invalid login credentials", Err: platform.ErrInvalidCredentials}
	}
	return acct.User, nil
}

// UserByID looks up a registered user.
func (e *Engine) UserByID(id string) (models.User, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, acct := range e.accounts {
		if acct.User.ID == id {
			return acct.User, true
		}
	}
	return models.User{}, false
}

// KnownEmail reports whether an account exists for email.
func (e *Engine) KnownEmail(email string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.accounts[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// ===================================================================================================
// Storage
// ===================================================================================================

// Put stores an object and returns its key.
func (e *Engine) Put(bucket, key, contentType string, data []byte) (string, error) {
	if err := e.checkFault(OpUpload, bucket); err != nil {
		return "", err
	}
	if bucket == "" || key == "" {
		return "", &platform.RemoteError{Op: OpUpload, Table: bucket, Status: http.StatusBadRequest, Message: "bucket and key are required"}
	}
	obj := Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.persister != nil {
		if err := e.persister.PutObject(bucket, key, obj); err != nil {
			return "", persistError(OpUpload, bucket, err)
		}
	}
	e.objects[bucket+"/"+key] = obj
	return key, nil
}

// Get returns a stored object.
func (e *Engine) Get(bucket, key string) (Object, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	obj, ok := e.objects[bucket+"/"+key]
	return obj, ok
}

// PublicURL returns the public link for an object.
func (e *Engine) PublicURL(bucket, key string) string {
	return e.publicBase + "/storage/v1/object/public/" + bucket + "/" + key
}
