// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package memory

// Snapshot is the durable state loaded when an engine starts.
type Snapshot struct {
	Tables   map[string][]map[string]any
	Accounts []Account
	Objects  map[string]Object // keyed by bucket/key
}

// Persister stores engine writes. Calls happen under the engine lock, in
// commit order; a failing call aborts the write.
type Persister interface {
	Load() (*Snapshot, error)
	PutRow(table string, row map[string]any) error
	DeleteRow(table, id string) error
	PutAccount(acct Account) error
	PutObject(bucket, key string, obj Object) error
}
