// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package market

import (
	"context"
	"sync"

	"github.com/tomtom215/bookswap/internal/feed"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/optimistic"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/unread"
)

// Grid is the controller for the market home screen.
type Grid struct {
	svc      *Service
	notifier notify.Notifier
	badge    *unread.Counter

	listings  *feed.Reconciler[models.Listing]
	favorites *optimistic.Value[optimistic.Set]
	changes   chan struct{}

	mu        sync.Mutex
	opts      BrowseOptions
	unread    int
	stopWatch func()
	watchDone chan struct{}
}

// NewGrid creates an unmounted grid. badge may be nil when no unread
// tracker runs.
func NewGrid(svc *Service, notifier notify.Notifier, badge *unread.Counter) *Grid {
	notifier = notify.Or(notifier)
	g := &Grid{
		svc:      svc,
		notifier: notifier,
		badge:    badge,
		changes:  make(chan struct{}, 1),
	}
	g.listings = feed.New[models.Listing](svc.gw, feed.Options[models.Listing]{
		Name:     models.TableListings,
		Order:    feed.Descending,
		Notifier: notifier,
		Keep:     g.matches,
	})
	g.favorites = optimistic.NewValue(optimistic.Set{}, func(optimistic.Set) { g.signal() })
	return g
}

// Mount loads listings matching opts and the favorite set, and starts
// following the unread badge. The live subscription follows the category
// when one is given, otherwise every listing; status is checked per row so
// a listing leaves the grid when it is sold.
func (g *Grid) Mount(ctx context.Context, opts BrowseOptions) error {
	g.Unmount()

	filter := platform.Filter{Table: models.TableListings}
	if opts.Category != "" {
		filter.Column, filter.Value = "category", opts.Category
	}
	g.mu.Lock()
	g.opts = opts
	g.mu.Unlock()
	err := g.listings.Start(ctx, filter, func(ctx context.Context) ([]models.Listing, error) {
		return g.svc.Browse(ctx, opts)
	})
	if err != nil {
		g.notifier.Alert("Could not load listings", err)
		return err
	}

	if _, signedIn := g.svc.gw.Session(); signedIn {
		set, err := g.svc.FavoriteIDs(ctx)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Favorites unavailable")
			g.notifier.Warn("Could not load favorites", err)
		} else {
			g.favorites.Store(set)
		}
	}

	if g.badge != nil {
		ch, cancel := g.badge.Watch()
		done := make(chan struct{})
		g.mu.Lock()
		g.stopWatch, g.watchDone = cancel, done
		g.mu.Unlock()
		go g.followBadge(ch, done)
	}
	return nil
}

func (g *Grid) matches(l models.Listing) bool {
	g.mu.Lock()
	opts := g.opts
	g.mu.Unlock()
	return opts.matches(l)
}

func (g *Grid) followBadge(ch <-chan int, done chan struct{}) {
	defer close(done)
	for n := range ch {
		g.mu.Lock()
		g.unread = n
		g.mu.Unlock()
		g.signal()
	}
}

// Unmount releases the listings subscription and the badge watch.
func (g *Grid) Unmount() {
	g.listings.Stop()
	g.mu.Lock()
	stop, done := g.stopWatch, g.watchDone
	g.stopWatch, g.watchDone = nil, nil
	g.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

// Listings returns the grid newest first.
func (g *Grid) Listings() []models.Listing { return g.listings.Items() }

// Favorites returns the current favorite set.
func (g *Grid) Favorites() optimistic.Set { return g.favorites.Load() }

// IsFavorite reports whether listingID is favorited.
func (g *Grid) IsFavorite(listingID string) bool { return g.favorites.Load().Has(listingID) }

// Unread returns the unread message badge.
func (g *Grid) Unread() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unread
}

// Live reports whether new listings arrive without a reload.
func (g *Grid) Live() bool { return g.listings.Live() }

// Changes is signalled after the favorite set or badge changes.
// ListingChanges covers the listings.
func (g *Grid) Changes() <-chan struct{} { return g.changes }

// ListingChanges is signalled after the listings change.
func (g *Grid) ListingChanges() <-chan struct{} { return g.listings.Changes() }

func (g *Grid) signal() {
	select {
	case g.changes <- struct{}{}:
	default:
	}
}

// ToggleFavorite flips the heart on listingID at once and writes it to the
// platform. If the write fails the heart is flipped back and a warning is
// shown. Success issues no further write.
func (g *Grid) ToggleFavorite(ctx context.Context, listingID string) (bool, error) {
	var adding bool
	_, err := optimistic.Run(ctx, g.favorites, optimistic.Mutation[optimistic.Set, struct{}]{
		Name: "favorite",
		Apply: func(s optimistic.Set) optimistic.Set {
			adding = !s.Has(listingID)
			return s.Toggled(listingID)
		},
		Rollback: func(s optimistic.Set) optimistic.Set {
			return s.Toggled(listingID)
		},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, g.svc.SetFavorite(ctx, listingID, adding)
		},
		Notifier: g.notifier,
		Failure:  "Could not update favorites",
	})
	if err != nil {
		return !adding, err
	}
	return adding, nil
}
