// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package market is the book marketplace: listings, drafts, favorites and
// reports, plus the Grid screen controller.
//
// Listing forms are validated before any remote call. Price must be a
// positive number and stock a whole number. Drafts skip validation until
// they are published.
//
// The Grid composes three independently updated pieces of state: the
// listings feed, the favorite set (toggled optimistically) and the unread
// message badge read from an unread.Counter.
package market
