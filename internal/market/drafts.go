// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package market

import (
	"context"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
)

// SaveDraft stores the form as-is. An empty id creates a new draft;
// otherwise the draft is overwritten.
func (s *Service) SaveDraft(ctx context.Context, id string, form ListingForm) (models.Draft, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Draft{}, err
	}
	form = form.trimmed()
	row := models.NewDraft{
		SellerID:    uid,
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
		Category:    form.Category,
		Condition:   form.Condition,
		Price:       form.Price,
		Stock:       form.Stock,
	}
	if id == "" {
		return platform.InsertAs[models.Draft](ctx, s.gw, models.TableDrafts, row)
	}

	// A map patch so cleared fields are cleared remotely too.
	patch := map[string]any{
		"title":       row.Title,
		"author":      row.Author,
		"description": row.Description,
		"category":    row.Category,
		"condition":   row.Condition,
		"price":       row.Price,
		"stock":       row.Stock,
	}
	rows, err := platform.UpdateAs[models.Draft](ctx, s.gw, models.TableDrafts,
		platform.Where("id", id).Eq("seller_id", uid), patch)
	if err != nil {
		return models.Draft{}, err
	}
	if len(rows) == 0 {
		return models.Draft{}, platform.ErrNotFound
	}
	return rows[0], nil
}

// Drafts lists the signed-in user's drafts, newest first.
func (s *Service) Drafts(ctx context.Context) ([]models.Draft, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return nil, err
	}
	return platform.SelectAs[models.Draft](ctx, s.gw, models.TableDrafts,
		platform.Where("seller_id", uid).OrderBy("created_at", true))
}

// DeleteDraft discards a draft.
func (s *Service) DeleteDraft(ctx context.Context, id string) error {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	return s.gw.Delete(ctx, models.TableDrafts, platform.Where("id", id).Eq("seller_id", uid))
}

// PublishDraft validates a draft, lists it and deletes the draft. A draft
// that fails validation is left untouched.
func (s *Service) PublishDraft(ctx context.Context, id string) (models.Listing, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Listing{}, err
	}
	d, err := platform.SelectOne[models.Draft](ctx, s.gw, models.TableDrafts,
		platform.Where("id", id).Eq("seller_id", uid))
	if err != nil {
		return models.Listing{}, err
	}

	form := ListingForm{
		Title:       d.Title,
		Author:      d.Author,
		Description: d.Description,
		Category:    d.Category,
		Condition:   d.Condition,
		Price:       d.Price,
		Stock:       d.Stock,
	}
	l, err := s.Publish(ctx, form, nil)
	if err != nil {
		return models.Listing{}, err
	}
	if d.ImageURL != "" {
		if updated, err := s.patch(ctx, l.ID, uid, map[string]any{"image_url": d.ImageURL}); err == nil {
			l = updated
		}
	}
	if err := s.DeleteDraft(ctx, id); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("draft_id", id).Msg("Published draft could not be removed")
	}
	return l, nil
}
