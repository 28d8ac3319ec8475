// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"context"

	"github.com/goccy/go-json"
)

// SelectAs fetches rows and decodes them into T.
func SelectAs[T any](ctx context.Context, t Tables, table string, q Query) ([]T, error) {
	raw, err := t.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	return decodeRows[T]("select", table, raw)
}

// SelectOne fetches the first matching row or returns ErrNotFound.
func SelectOne[T any](ctx context.Context, t Tables, table string, q Query) (T, error) {
	var zero T
	rows, err := SelectAs[T](ctx, t, table, q.Limit(1))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}

// InsertAs inserts row and decodes the stored row into T.
func InsertAs[T any](ctx context.Context, t Tables, table string, row any) (T, error) {
	var out T
	raw, err := t.Insert(ctx, table, row)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &RemoteError{Op: "insert", Table: table, Message: "malformed response", Err: err}
	}
	return out, nil
}

// UpdateAs patches matching rows and decodes them into T.
func UpdateAs[T any](ctx context.Context, t Tables, table string, q Query, patch any) ([]T, error) {
	raw, err := t.Update(ctx, table, q, patch)
	if err != nil {
		return nil, err
	}
	return decodeRows[T]("update", table, raw)
}

func decodeRows[T any](op, table string, raw json.RawMessage) ([]T, error) {
	rows := []T{}
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &RemoteError{Op: op, Table: table, Message: "malformed response", Err: err}
	}
	return rows, nil
}
