// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package models

import (
	"errors"
	"time"
)

// Platform table names.
const (
	TableProfiles         = "profiles"
	TableListings         = "listings"
	TableDrafts           = "drafts"
	TableFavorites        = "favorites"
	TableReports          = "reports"
	TableConversations    = "conversations"
	TableMessages         = "messages"
	TableCommunities      = "communities"
	TableCommunityPosts   = "community_posts"
	TableCommunityMembers = "community_members"
)

// Tables lists every table the client reads or writes.
var Tables = []string{
	TableProfiles,
	TableListings,
	TableDrafts,
	TableFavorites,
	TableReports,
	TableConversations,
	TableMessages,
	TableCommunities,
	TableCommunityPosts,
	TableCommunityMembers,
}

// ErrMissingID is returned by Validate when a row has no identifier.
var ErrMissingID = errors.New("row has no id")

// Row is implemented by every persisted entity.
type Row interface {
	Key() string
	Created() time.Time
}

// Validator is implemented by rows with required references.
type Validator interface {
	Validate() error
}

// Listing status values.
const (
	ListingActive   = "active"
	ListingSold     = "sold"
	ListingArchived = "archived"
)

// Report target types.
const (
	ReportListing = "listing"
	ReportPost    = "post"
	ReportMessage = "message"
)
