// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package cache provides a thread-safe in-memory cache with TTL support.

The client uses it for read-mostly lookups that a screen repeats for every
row it shows, such as the display name of a post's author or the profile of
a conversation's counterpart.

Entries expire after a TTL. Get drops an expired entry it finds, and a
background sweep drops the rest until Close.

	names := cache.New[string, string](10 * time.Minute)
	defer names.Close()

	name, err := names.GetOrLoad(ctx, authorID, func(ctx context.Context) (string, error) {
	    return lookupDisplayName(ctx, authorID)
	})

Failed loads are not cached, so the next lookup tries again.
*/
package cache
