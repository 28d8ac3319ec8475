// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package feed keeps a screen's rows consistent with the platform.
//
// A Reconciler seeds a Collection from a bulk fetch and merges change
// events from one subscription into it. A Snapshot does the same for a
// single parent row, such as the community shown above a wall.
//
// # Consistency
//
// The identifier is the only dedup key. Events may arrive before, during or
// after the bulk fetch, and a locally sent row may be added before or after
// its own INSERT event:
//
//   - an insert whose id is already held is dropped
//   - a delete removes by id and leaves a tombstone, so a baseline fetched
//     before the delete cannot bring the row back
//   - a delete for an id never seen is a no-op apart from its tombstone
//   - an update replaces the held row in place and never moves it
//
// Rows are ordered by creation time, ascending or descending. Rows with
// equal timestamps keep the order in which they arrived.
//
// # Lifecycle
//
// Start opens the subscription, then fetches. A subscription that cannot
// be opened is reported through notify.Notifier as a warning and the
// reconciler serves the baseline only. Stop releases the subscription; a
// fetch or event that completes after Stop, or after a later Start, is
// discarded.
//
// Consumers read Items after a signal on Changes. Signals coalesce.
package feed
