// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package memory

import (
	"net/http"

	"github.com/tomtom215/bookswap/internal/platform"
)

// Operation names used in errors and fault matching.
const (
	OpSelect    = "select"
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpUpload    = "upload"
	OpSubscribe = "subscribe"
	OpSignUp    = "signup"
	OpSignIn    = "signin"
)

// Fault makes matching operations fail.
type Fault struct {
	Op      string // operation name, required
	Table   string // table or bucket; empty matches any
	Times   int    // failures before the fault clears; 0 means until cleared
	Status  int    // defaults to 500
	Message string // defaults to "injected failure"
}

type fault struct {
	Fault
	remaining int
}

// Fail installs a fault.
func (e *Engine) Fail(f Fault) {
	if f.Status == 0 {
		f.Status = http.StatusInternalServerError
	}
	if f.Message == "" {
		f.Message = "injected failure"
	}
	e.mu.Lock()
	e.faults = append(e.faults, &fault{Fault: f, remaining: f.Times})
	e.mu.Unlock()
}

// FailNext makes the next op on table fail once.
func (e *Engine) FailNext(op, table string) {
	e.Fail(Fault{Op: op, Table: table, Times: 1})
}

// Heal removes every installed fault.
func (e *Engine) Heal() {
	e.mu.Lock()
	e.faults = nil
	e.mu.Unlock()
}

// checkFault consumes a matching fault and returns its error.
func (e *Engine) checkFault(op, table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, f := range e.faults {
		if f.Op != op || (f.Table != "" && f.Table != table) {
			continue
		}
		if f.Times > 0 {
			f.remaining--
			if f.remaining <= 0 {
				e.faults = append(e.faults[:i], e.faults[i+1:]...)
			}
		}
		if op == OpSignIn || op == OpSignUp {
			return &platform.AuthError{Op: op, Message: f.Message}
		}
		return &platform.RemoteError{Op: op, Table: table, Status: f.Status, Message: f.Message}
	}
	return nil
}
