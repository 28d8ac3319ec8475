// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package chat is buyer/seller messaging about a listing.
//
// Service finds or opens conversations and builds the inbox. Thread is the
// screen controller for one conversation: it mounts a message feed, sends
// messages and marks the counterpart's messages read.
package chat
