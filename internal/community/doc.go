// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

// Package community implements topic communities and their walls.
//
// Service covers the community directory: create, list, join, leave and
// member listings. Wall is the screen controller for one community. It
// holds exactly one subscription per (table, parent id): posts by
// community_id and the community row by id. Post deletions are never
// applied locally; they arrive through the DELETE event.
//
// Moderation (admin toggles and member removal) is optimistic and only
// allowed to the creator and admins, see ErrNotPermitted.
package community
