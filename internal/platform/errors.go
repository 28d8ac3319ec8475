// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSignedIn is wrapped by AuthError when no session is held.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrInvalidCredentials is wrapped by AuthError on rejected sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("row not found")

	// ErrSubscriptionClosed is returned when a subscription ends because its
	// connection went away.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// RemoteError is a failed table, storage or subscription operation.
// Message is the platform's human-readable text.
type RemoteError struct {
	Op      string // select, insert, update, delete, upload, subscribe
	Table   string // table or bucket
	Status  int    // HTTP status, 0 when the request never completed
	Code    string // platform error code, if any
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	target := e.Op
	if e.Table != "" {
		target = e.Op + " " + e.Table
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", target, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", target, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// AuthError is a failed authentication or a call that needs a session.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotSignedIn returns an AuthError wrapping ErrNotSignedIn.
func NotSignedIn(op string) error {
	return &AuthError{Op: op, Err: ErrNotSignedIn}
}

// Remote builds a RemoteError from a transport failure.
func Remote(op, table string, err error) error {
	return &RemoteError{Op: op, Table: table, Message: err.Error(), Err: err}
}

// IsRemote reports whether err is or wraps a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Message returns the user-facing message of a platform error, or err.Error().
func Message(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
