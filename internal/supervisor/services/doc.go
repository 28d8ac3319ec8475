// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package services adapts blocking components to suture.Service so the
// supervisor tree can restart them.
//
//   - HTTPServerService turns ListenAndServe/Shutdown into Serve(ctx).
//   - RealtimeHubService names the websocket hub's RunWithContext loop.
//
// Services that already implement Serve (the change relay, the store GC)
// are added to the tree directly.
package services
