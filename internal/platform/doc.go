// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package platform is the remote data gateway to the hosted backend.

Every other package reaches persistence, authentication, object storage and
change feeds through the Gateway interface:

	Tables    Select / Insert / Update / Delete on named tables
	Auth      SignUp / SignIn / SignOut / ResetPassword / Session / CurrentUser
	Storage   Upload / PublicURL
	Realtime  Subscribe(Filter) -> *Subscription

Implementations:

  - Client: HTTP + websocket client for the hosted platform (and the local
    emulator, which serves the same surfaces)
  - BreakerGateway: wraps any Gateway with a sony/gobreaker circuit breaker
  - memory.Client: in-process engine for tests and offline use

# Errors

Failures are *RemoteError (carries the platform's message) or *AuthError.
Nothing here retries. Callers decide whether to alert, warn, or roll back.

# Change Events

Subscriptions deliver ChangeEvent values. Feeds decode them with
DecodeChange[T], which yields one of Inserted[T], Updated[T] or Deleted[T]
after validating the row:

	change, err := platform.DecodeChange[models.Message](ev)
	switch c := change.(type) {
	case platform.Inserted[models.Message]:
	    // c.Row
	case platform.Deleted[models.Message]:
	    // c.ID
	}

# Queries

Query builds PostgREST style filters and is also evaluated directly by
in-process engines:

	q := platform.Where("conversation_id", id).OrderBy("created_at", false).Limit(100)
*/
package platform
