// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package websocket is the server side of the realtime change feed served by
the platform emulator.

Clients speak Phoenix channel frames over one connection. Each phx_join
names a topic and a single postgres_changes entry (table plus an optional
column=eq.value filter). The hub fans every row change out to the topics
whose filter matches the changed row; DELETE events are matched against
the old row.

Key Components:

  - Hub: owns the client set and the broadcast queue, run as a suture service
  - Client: one connection with its read and write pumps and joined topics
  - Handler: upgrades HTTP requests and registers clients

Architecture:

	engine change ──► bus ──► Hub.Publish ──► Client.deliver ──► topic frames

Fan-out is ordered by client id. A client whose send buffer is full is
dropped rather than allowed to stall the hub.

Thread Safety:

Hub state is guarded by its own mutex and only mutated from RunWithContext.
Each Client guards its topic map and send channel; the channel is closed
exactly once.
*/
package websocket
