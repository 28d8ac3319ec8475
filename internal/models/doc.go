// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

/*
Package models defines the rows Bookswap reads from and writes to the platform.

Each persisted entity has a row type with server-assigned fields (id,
created_at) and a New* insert payload without them. Row types implement Row
(Key, Created) so feeds can order and deduplicate them; rows with required
references also implement Validator, which change decoding calls before a row
reaches a feed.

Fields tagged json:"-" are client-side enrichments and never leave the process:

  - CommunityPost.AuthorName: looked up after the insert event arrives
  - Conversation.Buyer / Seller: counterpart profile snapshots
  - CommunityMember.Profile: member profile for the members screen

Tables:

	profiles, listings, drafts, favorites, reports,
	conversations, messages,
	communities, community_posts, community_members
*/
package models
