// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package models

import (
	"fmt"
	"time"
)

// Listing is a book offered for sale.
type Listing struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l Listing) Key() string        { return l.ID }
func (l Listing) Created() time.Time { return l.CreatedAt }

// Validate checks the references a listing row must carry.
func (l Listing) Validate() error {
	if l.ID == "" {
		return ErrMissingID
	}
	if l.SellerID == "" {
		return fmt.Errorf("listing %s has no seller_id", l.ID)
	}
	return nil
}

// NewListing is the insert payload for a listing.
type NewListing struct {
	SellerID    string  `json:"seller_id"`
	Title       string  `json:"title"`
	Author      string  `json:"author,omitempty"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Condition   string  `json:"condition,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url,omitempty"`
	Status      string  `json:"status"`
}

// Draft is an unvalidated, saved-for-later listing form. Price and stock are
// kept as typed so a half-filled form round-trips unchanged.
type Draft struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Price       string    `json:"price,omitempty"`
	Stock       string    `json:"stock,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (d Draft) Key() string        { return d.ID }
func (d Draft) Created() time.Time { return d.CreatedAt }

// NewDraft is the insert payload for a draft.
type NewDraft struct {
	SellerID    string `json:"seller_id"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Price       string `json:"price,omitempty"`
	Stock       string `json:"stock,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Favorite records that a user favorited a listing.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (f Favorite) Key() string        { return f.ID }
func (f Favorite) Created() time.Time { return f.CreatedAt }

// NewFavorite is the insert payload for a favorite.
type NewFavorite struct {
	UserID    string `json:"user_id"`
	ListingID string `json:"listing_id"`
}

// Report flags a listing, post or message for moderation.
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Report) Key() string        { return r.ID }
func (r Report) Created() time.Time { return r.CreatedAt }

// NewReport is the insert payload for a report.
type NewReport struct {
	ReporterID string `json:"reporter_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}
