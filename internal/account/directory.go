// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package account

import (
	"context"
	"time"

	"github.com/tomtom215/bookswap/internal/cache"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
)

// DefaultProfileTTL bounds how stale a cached display name may be.
const DefaultProfileTTL = 10 * time.Minute

// Directory looks up profiles by user id through a TTL cache.
type Directory struct {
	tables platform.Tables
	cache  *cache.Cache[string, models.Profile]
}

// NewDirectory creates a directory. Close releases its cache sweeper.
func NewDirectory(tables platform.Tables, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &Directory{tables: tables, cache: cache.New[string, models.Profile](ttl)}
}

// Get returns the profile for id.
func (d *Directory) Get(ctx context.Context, id string) (models.Profile, error) {
	return d.cache.GetOrLoad(ctx, id, func(ctx context.Context) (models.Profile, error) {
		return platform.SelectOne[models.Profile](ctx, d.tables, models.TableProfiles, platform.Where("id", id))
	})
}

// Many returns the profiles for ids, fetching the uncached ones in one
// request. Ids without a profile are absent from the result.
func (d *Directory) Many(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := d.cache.Get(id); ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	rows, err := platform.SelectAs[models.Profile](ctx, d.tables, models.TableProfiles, platform.All().In("id", missing...))
	if err != nil {
		return out, err
	}
	for _, p := range rows {
		d.cache.Set(p.ID, p)
		out[p.ID] = p
	}
	return out, nil
}

// DisplayName returns id's display name, or "" when the lookup fails.
func (d *Directory) DisplayName(ctx context.Context, id string) string {
	p, err := d.Get(ctx, id)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("user_id", id).Msg("Display name lookup failed")
		return ""
	}
	return p.DisplayName
}

// Remember caches a profile the caller already holds.
func (d *Directory) Remember(p models.Profile) {
	d.cache.Set(p.ID, p)
}

// Forget drops a cached profile.
func (d *Directory) Forget(id string) {
	d.cache.Delete(id)
}

// Close stops the cache sweeper.
func (d *Directory) Close() {
	d.cache.Close()
}
