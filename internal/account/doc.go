// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package account covers sign-up, sign-in and profiles.
//
// Service wraps the platform's auth surface and keeps a profile row per
// user. Directory is the cached profile lookup every screen uses to show
// display names and avatars.
package account
