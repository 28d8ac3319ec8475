// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package emulator serves a local stand-in for the hosted backend, so the
client, the CLI and integration tests can run without network access.

Surfaces:

	GET    /rest/v1/{table}                      select (PostgREST query syntax)
	POST   /rest/v1/{table}                      insert, returns the stored rows
	PATCH  /rest/v1/{table}                      update matching rows
	DELETE /rest/v1/{table}                      delete matching rows
	POST   /auth/v1/signup                       register and sign in
	POST   /auth/v1/token?grant_type=password    sign in
	POST   /auth/v1/logout                       revoke the access token
	GET    /auth/v1/user                         current user
	POST   /auth/v1/recover                      password reset (accepted, no mail)
	POST   /storage/v1/object/{bucket}/{key}     upload
	GET    /storage/v1/object/public/{bucket}/*  download
	GET    /realtime/v1/websocket                Phoenix channel change feed
	GET    /metrics                              Prometheus

Every API request must carry the anon key in the apikey header (or query
parameter for the websocket). Writes need a bearer token issued by the
auth endpoints; inserts must name the caller in the table's owner column.

State lives in a memory.Engine persisted to BadgerDB. Each committed change
is published on a watermill bus (in-process channels, or NATS when built
with -tags nats), and a Relay feeds the bus into the websocket hub.
*/
package emulator
