// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/platform/memory"
)

// Key prefixes for the persisted entry types.
const (
	prefixRow     = "row/"
	prefixAccount = "acct/"
	prefixObject  = "obj/"
)

// Ensure BadgerPersister implements memory.Persister
var _ memory.Persister = (*BadgerPersister)(nil)

// BadgerPersister stores engine state in BadgerDB. Rows are keyed
// row/<table>/<id>, accounts acct/<user id> and objects obj/<bucket>/<key>.
type BadgerPersister struct {
	db       *badger.DB
	inMemory bool
}

// gcRatio is the discardable fraction a value log file needs before GC
// rewrites it.
const gcRatio = 0.5

// OpenBadger opens (or creates) the store at dir. An empty dir keeps the
// store in memory.
func OpenBadger(dir string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = true
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", dir).Bool("in_memory", dir == "").Msg("Platform store opened")
	return &BadgerPersister{db: db, inMemory: dir == ""}, nil
}

// Close closes the database.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}

// Load reads every persisted entry.
func (p *BadgerPersister) Load() (*memory.Snapshot, error) {
	snap := &memory.Snapshot{
		Tables:  map[string][]map[string]any{},
		Objects: map[string]memory.Object{},
	}
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			if err := addEntry(snap, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func addEntry(snap *memory.Snapshot, key string, value []byte) error {
	switch {
	case strings.HasPrefix(key, prefixRow):
		table, _, ok := strings.Cut(strings.TrimPrefix(key, prefixRow), "/")
		if !ok {
			return fmt.Errorf("malformed row key %q", key)
		}
		var row map[string]any
		if err := json.Unmarshal(value, &row); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snap.Tables[table] = append(snap.Tables[table], row)
	case strings.HasPrefix(key, prefixAccount):
		var acct memory.Account
		if err := json.Unmarshal(value, &acct); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snap.Accounts = append(snap.Accounts, acct)
	case strings.HasPrefix(key, prefixObject):
		var obj memory.Object
		if err := json.Unmarshal(value, &obj); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		snap.Objects[strings.TrimPrefix(key, prefixObject)] = obj
	default:
		logging.Debug().Str("key", key).Msg("Skipping unknown store key")
	}
	return nil
}

func (p *BadgerPersister) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// PutRow implements memory.Persister.
func (p *BadgerPersister) PutRow(table string, row map[string]any) error {
	id, _ := row["id"].(string)
	if id == "" {
		return fmt.Errorf("row in %s has no id", table)
	}
	return p.put(prefixRow+table+"/"+id, row)
}

// DeleteRow implements memory.Persister.
func (p *BadgerPersister) DeleteRow(table, id string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixRow + table + "/" + id))
	})
}

// PutAccount implements memory.Persister.
func (p *BadgerPersister) PutAccount(acct memory.Account) error {
	return p.put(prefixAccount+acct.User.ID, acct)
}

// PutObject implements memory.Persister.
func (p *BadgerPersister) PutObject(bucket, key string, obj memory.Object) error {
	return p.put(prefixObject+bucket+"/"+key, obj)
}

// RunGC reclaims value log space until badger reports nothing to rewrite.
// In-memory stores have no value log and return immediately.
func (p *BadgerPersister) RunGC() error {
	if p.inMemory {
		return nil
	}
	for {
		err := p.db.RunValueLogGC(gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// GCService runs RunGC on a fixed interval under a supervisor.
type GCService struct {
	store    *BadgerPersister
	interval time.Duration
}

// NewGCService creates the collector. A non-positive interval defaults to
// five minutes.
func NewGCService(store *BadgerPersister, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &GCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Platform store GC failed")
			}
		}
	}
}

func (g *GCService) String() string { return "store-gc" }
