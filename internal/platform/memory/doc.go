// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package memory is an in-process platform: tables, accounts, object storage
// and change fan-out held in memory behind the platform.Gateway contract.
//
// An Engine is shared state. Each Client is one signed-in (or anonymous)
// user's view of it, the way each device holds its own session against the
// real platform:
//
//	eng := memory.New()
//	alice := eng.Client()
//	if _, err := alice.SignUp(ctx, "alice@example.com", "secret-pass"); err != nil {
//	    return err
//	}
//
// Writes publish change events synchronously to matching subscriptions and
// to OnChange hooks, after the engine lock is released. A Persister makes the
// engine durable; the emulator backs it with badger.
//
// Fault injection (Engine.Fail) makes a chosen operation on a chosen table
// fail with a RemoteError, which is how rollback and fetch-only paths are
// tested.
package memory
