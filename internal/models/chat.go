// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package models

import (
	"fmt"
	"time"
)

// Conversation is a direct chat between the buyer and seller of one listing.
// At most one exists per (listing, buyer, seller).
type Conversation struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`

	// Client-side snapshots, not columns.
	Buyer  *Profile `json:"-"`
	Seller *Profile `json:"-"`
}

func (c Conversation) Key() string        { return c.ID }
func (c Conversation) Created() time.Time { return c.CreatedAt }

// Counterpart returns the other participant's id.
func (c Conversation) Counterpart(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}

// CounterpartProfile returns the other participant's profile snapshot, if attached.
func (c Conversation) CounterpartProfile(userID string) *Profile {
	if c.BuyerID == userID {
		return c.Seller
	}
	return c.Buyer
}

// Has reports whether userID participates in the conversation.
func (c Conversation) Has(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// NewConversation is the insert payload for a conversation.
type NewConversation struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
}

// Message is one chat message. Messages are never deleted; only Read changes.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m Message) Key() string        { return m.ID }
func (m Message) Created() time.Time { return m.CreatedAt }

// Validate checks the references a message row must carry.
func (m Message) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.ConversationID == "" || m.SenderID == "" {
		return fmt.Errorf("message %s is missing conversation_id or sender_id", m.ID)
	}
	return nil
}

// NewMessage is the insert payload for a message.
type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
}
