// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/models"
)

// EventType is the kind of row change.
type EventType string

// Change event types as sent by the platform.
const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ErrInvalidChange is wrapped by DecodeChange for malformed payloads.
var ErrInvalidChange = errors.New("invalid change event")

// ChangeEvent is one row change as delivered on the wire. Record holds the
// new row for INSERT and UPDATE; OldRecord holds at least the id for DELETE.
type ChangeEvent struct {
	Type            EventType       `json:"type"`
	Table           string          `json:"table"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// Change is a decoded change event: exactly one of Inserted, Updated or
// Deleted.
type Change[T models.Row] interface {
	Kind() EventType
	isChange()
}

// Inserted carries a new row.
type Inserted[T models.Row] struct{ Row T }

// Updated carries the replacement row.
type Updated[T models.Row] struct{ Row T }

// Deleted carries the removed row's id.
type Deleted[T models.Row] struct{ ID string }

func (Inserted[T]) Kind() EventType { return EventInsert }
func (Updated[T]) Kind() EventType  { return EventUpdate }
func (Deleted[T]) Kind() EventType  { return EventDelete }

func (Inserted[T]) isChange() {}
func (Updated[T]) isChange()  {}
func (Deleted[T]) isChange()  {}

// DecodeChange validates ev and decodes it into the row type of its table.
// Rows must carry an id and pass their own Validate when they have one.
func DecodeChange[T models.Row](ev ChangeEvent) (Change[T], error) {
	switch ev.Type {
	case EventInsert, EventUpdate:
		if len(ev.Record) == 0 {
			return nil, fmt.Errorf("%w: %s on %s has no record", ErrInvalidChange, ev.Type, ev.Table)
		}
		var row T
		if err := json.Unmarshal(ev.Record, &row); err != nil {
			return nil, fmt.Errorf("%w: decode %s record: %v", ErrInvalidChange, ev.Table, err)
		}
		if err := checkRow(row); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidChange, ev.Table, err)
		}
		if ev.Type == EventInsert {
			return Inserted[T]{Row: row}, nil
		}
		return Updated[T]{Row: row}, nil

	case EventDelete:
		var old struct {
			ID string `json:"id"`
		}
		if len(ev.OldRecord) > 0 {
			if err := json.Unmarshal(ev.OldRecord, &old); err != nil {
				return nil, fmt.Errorf("%w: decode %s old record: %v", ErrInvalidChange, ev.Table, err)
			}
		}
		if old.ID == "" {
			return nil, fmt.Errorf("%w: DELETE on %s has no id", ErrInvalidChange, ev.Table)
		}
		return Deleted[T]{ID: old.ID}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidChange, ev.Type)
	}
}

func checkRow(row models.Row) error {
	if v, ok := row.(models.Validator); ok {
		return v.Validate()
	}
	if row.Key() == "" {
		return models.ErrMissingID
	}
	return nil
}

// NewChangeEvent builds a ChangeEvent from row values. Engines use it when
// publishing; old may be nil for INSERT and new may be nil for DELETE.
func NewChangeEvent(typ EventType, table string, newRow, oldRow any, at time.Time) (ChangeEvent, error) {
	ev := ChangeEvent{Type: typ, Table: table, CommitTimestamp: at}
	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("encode record: %w", err)
		}
		ev.Record = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("encode old record: %w", err)
		}
		ev.OldRecord = data
	}
	return ev, nil
}
