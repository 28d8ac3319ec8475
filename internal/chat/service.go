// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package chat

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/bookswap/internal/account"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// Service manages conversations.
type Service struct {
	gw       platform.Gateway
	profiles *account.Directory
}

// NewService creates a chat service.
func NewService(gw platform.Gateway, profiles *account.Directory) *Service {
	return &Service{gw: gw, profiles: profiles}
}

// LookupOrCreate returns the signed-in buyer's conversation with the
// listing's seller, creating it on first contact.
func (s *Service) LookupOrCreate(ctx context.Context, listing models.Listing) (models.Conversation, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Conversation{}, err
	}
	if listing.SellerID == uid {
		return models.Conversation{}, validation.NewFieldError("listing_id", "self", "you cannot message yourself about your own listing")
	}

	q := platform.Where("listing_id", listing.ID).Eq("buyer_id", uid).Eq("seller_id", listing.SellerID)
	conv, err := platform.SelectOne[models.Conversation](ctx, s.gw, models.TableConversations, q)
	if err == nil {
		return s.attach(ctx, conv), nil
	}
	if !errors.Is(err, platform.ErrNotFound) {
		return models.Conversation{}, err
	}

	conv, err = platform.InsertAs[models.Conversation](ctx, s.gw, models.TableConversations, models.NewConversation{
		ListingID: listing.ID,
		BuyerID:   uid,
		SellerID:  listing.SellerID,
	})
	var re *platform.RemoteError
	if errors.As(err, &re) && re.Status == http.StatusConflict {
		// Another device opened it first.
		conv, err = platform.SelectOne[models.Conversation](ctx, s.gw, models.TableConversations, q)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	logging.Ctx(ctx).Info().Str("conversation_id", conv.ID).Str("listing_id", listing.ID).Msg("Conversation opened")
	return s.attach(ctx, conv), nil
}

// Get returns one of the signed-in user's conversations.
func (s *Service) Get(ctx context.Context, id string) (models.Conversation, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err := platform.SelectOne[models.Conversation](ctx, s.gw, models.TableConversations, platform.Where("id", id))
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.Has(uid) {
		return models.Conversation{}, platform.ErrNotFound
	}
	return s.attach(ctx, conv), nil
}

// attach fills the participant profile snapshots. Lookup failures leave
// them nil.
func (s *Service) attach(ctx context.Context, conv models.Conversation) models.Conversation {
	profiles, err := s.profiles.Many(ctx, []string{conv.BuyerID, conv.SellerID})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Participant profile lookup failed")
	}
	if p, ok := profiles[conv.BuyerID]; ok {
		conv.Buyer = &p
	}
	if p, ok := profiles[conv.SellerID]; ok {
		conv.Seller = &p
	}
	return conv
}

// InboxEntry is one row of the inbox.
type InboxEntry struct {
	Conversation models.Conversation
	Counterpart  models.Profile
	LastMessage  *models.Message
	Unread       int
}

// LastActivity is the newest message time, or the conversation's creation.
func (e InboxEntry) LastActivity() time.Time {
	if e.LastMessage != nil {
		return e.LastMessage.CreatedAt
	}
	return e.Conversation.CreatedAt
}

// Inbox lists the signed-in user's conversations, most recent activity first.
func (s *Service) Inbox(ctx context.Context) ([]InboxEntry, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return nil, err
	}

	var convs []models.Conversation
	for _, column := range []string{"buyer_id", "seller_id"} {
		rows, err := platform.SelectAs[models.Conversation](ctx, s.gw, models.TableConversations, platform.Where(column, uid))
		if err != nil {
			return nil, err
		}
		convs = append(convs, rows...)
	}
	if len(convs) == 0 {
		return []InboxEntry{}, nil
	}

	ids := make([]string, 0, len(convs))
	people := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
		people = append(people, c.Counterpart(uid))
	}

	msgs, err := platform.SelectAs[models.Message](ctx, s.gw, models.TableMessages,
		platform.All().In("conversation_id", ids...).OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	last := make(map[string]models.Message, len(convs))
	unread := make(map[string]int, len(convs))
	for _, m := range msgs {
		if _, seen := last[m.ConversationID]; !seen {
			last[m.ConversationID] = m
		}
		if !m.Read && m.SenderID != uid {
			unread[m.ConversationID]++
		}
	}

	profiles, err := s.profiles.Many(ctx, people)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Counterpart profile lookup failed")
	}

	entries := make([]InboxEntry, 0, len(convs))
	for _, c := range convs {
		other := c.Counterpart(uid)
		e := InboxEntry{Conversation: c, Counterpart: profiles[other], Unread: unread[c.ID]}
		if e.Counterpart.ID == "" {
			e.Counterpart.ID = other
		}
		if p, ok := profiles[c.BuyerID]; ok {
			e.Conversation.Buyer = &p
		}
		if p, ok := profiles[c.SellerID]; ok {
			e.Conversation.Seller = &p
		}
		if m, ok := last[c.ID]; ok {
			e.LastMessage = &m
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastActivity().After(entries[j].LastActivity())
	})
	return entries, nil
}
