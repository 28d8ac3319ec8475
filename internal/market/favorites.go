// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package market

import (
	"context"

	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/optimistic"
	"github.com/tomtom215/bookswap/internal/platform"
)

// FavoriteIDs returns the signed-in user's favorited listing ids.
func (s *Service) FavoriteIDs(ctx context.Context) (optimistic.Set, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return optimistic.Set{}, err
	}
	rows, err := platform.SelectAs[models.Favorite](ctx, s.gw, models.TableFavorites, platform.Where("user_id", uid))
	if err != nil {
		return optimistic.Set{}, err
	}
	ids := make([]string, len(rows))
	for i, f := range rows {
		ids[i] = f.ListingID
	}
	return optimistic.NewSet(ids...), nil
}

// Favorites returns the favorited listings, most recently favorited first.
func (s *Service) Favorites(ctx context.Context) ([]models.Listing, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return nil, err
	}
	favs, err := platform.SelectAs[models.Favorite](ctx, s.gw, models.TableFavorites,
		platform.Where("user_id", uid).OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	if len(favs) == 0 {
		return []models.Listing{}, nil
	}
	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.ListingID
	}
	rows, err := platform.SelectAs[models.Listing](ctx, s.gw, models.TableListings, platform.All().In("id", ids...))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Listing, len(rows))
	for _, l := range rows {
		byID[l.ID] = l
	}
	out := make([]models.Listing, 0, len(rows))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// SetFavorite writes the favorite row for listingID, or removes it.
func (s *Service) SetFavorite(ctx context.Context, listingID string, favorite bool) error {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	if favorite {
		_, err = s.gw.Insert(ctx, models.TableFavorites, models.NewFavorite{UserID: uid, ListingID: listingID})
		return err
	}
	return s.gw.Delete(ctx, models.TableFavorites, platform.Where("user_id", uid).Eq("listing_id", listingID))
}
