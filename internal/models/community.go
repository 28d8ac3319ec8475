// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package models

import (
	"fmt"
	"slices"
	"time"
)

// Community is a topic group with a shared wall. CreatorID never changes and
// always has admin rights whether or not it appears in AdminIDs.
type Community struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatorID   string    `json:"creator_id"`
	AdminIDs    []string  `json:"admin_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Community) Key() string        { return c.ID }
func (c Community) Created() time.Time { return c.CreatedAt }

// Validate checks the references a community row must carry.
func (c Community) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if c.CreatorID == "" {
		return fmt.Errorf("community %s has no creator_id", c.ID)
	}
	return nil
}

// IsAdmin reports whether userID is the creator or an explicit admin.
func (c Community) IsAdmin(userID string) bool {
	return userID != "" && (userID == c.CreatorID || slices.Contains(c.AdminIDs, userID))
}

// WithAdmin returns a copy of the admin list with userID added or removed.
// The input slice is never modified.
func (c Community) WithAdmin(userID string, admin bool) []string {
	out := make([]string, 0, len(c.AdminIDs)+1)
	for _, id := range c.AdminIDs {
		if id != userID {
			out = append(out, id)
		}
	}
	if admin {
		out = append(out, userID)
	}
	return out
}

// NewCommunity is the insert payload for a community.
type NewCommunity struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	CreatorID   string   `json:"creator_id"`
	AdminIDs    []string `json:"admin_ids"`
}

// CommunityPost is one post on a community wall. Posts are never updated.
type CommunityPost struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// AuthorName is attached on the client, never stored.
	AuthorName string `json:"-"`
}

func (p CommunityPost) Key() string        { return p.ID }
func (p CommunityPost) Created() time.Time { return p.CreatedAt }

// Validate checks the references a post row must carry.
func (p CommunityPost) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.CommunityID == "" || p.AuthorID == "" {
		return fmt.Errorf("post %s is missing community_id or author_id", p.ID)
	}
	return nil
}

// NewCommunityPost is the insert payload for a post.
type NewCommunityPost struct {
	CommunityID string `json:"community_id"`
	AuthorID    string `json:"author_id"`
	Content     string `json:"content,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// CommunityMember is a membership row.
type CommunityMember struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Profile is attached on the client.
	Profile *Profile `json:"-"`
}

func (m CommunityMember) Key() string        { return m.ID }
func (m CommunityMember) Created() time.Time { return m.CreatedAt }

// NewCommunityMember is the insert payload for a membership.
type NewCommunityMember struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
}
