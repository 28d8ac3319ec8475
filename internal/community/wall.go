// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package community

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/tomtom215/bookswap/internal/account"
	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/feed"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/notify"
	"github.com/tomtom215/bookswap/internal/optimistic"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// PostForm is the wall compose box. A post needs text, an image, or both.
type PostForm struct {
	Content string `json:"content" validate:"max=2000"`
}

// Wall is the controller for one community's wall. Posts are shown newest
// first.
type Wall struct {
	gw       platform.Gateway
	buckets  config.StorageConfig
	profiles *account.Directory
	notifier notify.Notifier

	posts     *feed.Reconciler[models.CommunityPost]
	community *feed.Snapshot[models.Community]
	members   *optimistic.Value[[]models.CommunityMember]

	mu    sync.Mutex
	id    string
	me    string
	mount uint64
}

// NewWall creates an unmounted wall.
func NewWall(gw platform.Gateway, buckets config.StorageConfig, profiles *account.Directory, notifier notify.Notifier) *Wall {
	notifier = notify.Or(notifier)
	w := &Wall{
		gw:        gw,
		buckets:   buckets,
		profiles:  profiles,
		notifier:  notifier,
		community: feed.NewSnapshot[models.Community](gw, models.TableCommunities, notifier),
		members:   optimistic.NewValue[[]models.CommunityMember](nil, nil),
	}
	w.posts = feed.New[models.CommunityPost](gw, feed.Options[models.CommunityPost]{
		Name:     models.TableCommunityPosts,
		Order:    feed.Descending,
		Notifier: notifier,
		Enrich:   w.withAuthor,
	})
	return w
}

func (w *Wall) withAuthor(ctx context.Context, p models.CommunityPost) models.CommunityPost {
	p.AuthorName = w.profiles.DisplayName(ctx, p.AuthorID)
	return p
}

// Mount shows communityID, releasing any previously mounted community.
func (w *Wall) Mount(ctx context.Context, communityID string) error {
	uid, err := platform.UserID(w.gw)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.id, w.me = communityID, uid
	w.mount++
	w.mu.Unlock()
	current := w.mounted()

	err = w.community.Start(ctx, platform.Filter{Table: models.TableCommunities, Column: "id", Value: communityID},
		func(ctx context.Context) (models.Community, error) {
			return platform.SelectOne[models.Community](ctx, w.gw, models.TableCommunities, platform.Where("id", communityID))
		})
	if err != nil {
		w.notifier.Alert("Could not load community", err)
		return err
	}

	err = w.posts.Start(ctx, platform.Filter{Table: models.TableCommunityPosts, Column: "community_id", Value: communityID}, w.fetchPosts(communityID))
	if err != nil {
		w.community.Stop()
		w.notifier.Alert("Could not load posts", err)
		return err
	}

	list, err := members(ctx, w.gw, w.profiles, communityID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("community_id", communityID).Msg("Member list unavailable")
		w.notifier.Warn("Could not load members", err)
		list = nil
	}
	if !current() {
		return feed.ErrNotMounted
	}
	w.members.Store(list)
	return nil
}

// fetchPosts loads the baseline and attaches author names in one lookup.
func (w *Wall) fetchPosts(communityID string) feed.FetchFunc[models.CommunityPost] {
	return func(ctx context.Context) ([]models.CommunityPost, error) {
		posts, err := platform.SelectAs[models.CommunityPost](ctx, w.gw, models.TableCommunityPosts,
			platform.Where("community_id", communityID).OrderBy("created_at", true))
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(posts))
		for i, p := range posts {
			ids[i] = p.AuthorID
		}
		names, err := w.profiles.Many(ctx, ids)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("Author lookup failed")
		}
		for i := range posts {
			posts[i].AuthorName = names[posts[i].AuthorID].DisplayName
		}
		return posts, nil
	}
}

// Unmount releases both subscriptions. Results of calls still in flight
// are discarded.
func (w *Wall) Unmount() {
	w.mu.Lock()
	w.mount++
	w.mu.Unlock()
	w.posts.Stop()
	w.community.Stop()
}

// mounted returns a check that stays true until the wall is unmounted or
// remounted.
func (w *Wall) mounted() func() bool {
	w.mu.Lock()
	gen := w.mount
	w.mu.Unlock()
	return func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.mount == gen
	}
}

// Community returns the held community row.
func (w *Wall) Community() (models.Community, bool) { return w.community.Get() }

// Posts returns the wall newest first.
func (w *Wall) Posts() []models.CommunityPost { return w.posts.Items() }

// Members returns the member list loaded at mount.
func (w *Wall) Members() []models.CommunityMember { return w.members.Load() }

// Live reports whether new posts arrive without a reload.
func (w *Wall) Live() bool { return w.posts.Live() }

// Changes is signalled after the post list changes.
func (w *Wall) Changes() <-chan struct{} { return w.posts.Changes() }

// CommunityChanges is signalled after the community row changes.
func (w *Wall) CommunityChanges() <-chan struct{} { return w.community.Changes() }

// CanModerate reports whether the signed-in user is the creator or an admin.
func (w *Wall) CanModerate() bool {
	c, ok := w.community.Get()
	w.mu.Lock()
	me := w.me
	w.mu.Unlock()
	return ok && c.IsAdmin(me)
}

func (w *Wall) state() (communityID, me string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id, w.me
}

// Post publishes to the wall with an optional image. The new post is shown
// immediately; its INSERT event is deduplicated by id.
func (w *Wall) Post(ctx context.Context, content string, image *platform.File) (models.CommunityPost, error) {
	form := PostForm{Content: strings.TrimSpace(content)}
	if verr := validation.ValidateStruct(form); verr != nil {
		return models.CommunityPost{}, verr
	}
	if form.Content == "" && image.Empty() {
		return models.CommunityPost{}, validation.NewFieldError("content", "required", "content is required")
	}
	if !w.posts.Mounted() {
		return models.CommunityPost{}, feed.ErrNotMounted
	}
	communityID, me := w.state()

	row := models.NewCommunityPost{CommunityID: communityID, AuthorID: me, Content: form.Content}
	if !image.Empty() {
		url, err := platform.UploadPublic(ctx, w.gw, w.buckets.CommunityBucket, me, image.Name, image.ContentType, image.Data)
		if err != nil {
			w.notifier.Alert("Image upload failed", err)
			return models.CommunityPost{}, err
		}
		row.ImageURL = url
	}

	post, err := platform.InsertAs[models.CommunityPost](ctx, w.gw, models.TableCommunityPosts, row)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("community_id", communityID).Msg("Post failed")
		w.notifier.Alert("Post not published", err)
		return models.CommunityPost{}, err
	}
	post = w.withAuthor(ctx, post)
	if _, err := w.posts.Add(post); err != nil {
		logging.Ctx(ctx).Debug().Str("post_id", post.ID).Msg("Wall unmounted before post completed")
	}
	return post, nil
}

// Delete removes a post. Authors may delete their own posts and moderators
// any post. The post leaves the wall when its DELETE event arrives.
func (w *Wall) Delete(ctx context.Context, postID string) error {
	communityID, me := w.state()
	if p, ok := w.posts.Get(postID); ok && p.AuthorID != me && !w.CanModerate() {
		return ErrNotPermitted
	}
	err := w.gw.Delete(ctx, models.TableCommunityPosts, platform.Where("id", postID).Eq("community_id", communityID))
	if err != nil {
		w.notifier.Alert("Could not delete post", err)
		return err
	}
	logging.Ctx(ctx).Info().Str("post_id", postID).Str("community_id", communityID).Msg("Post deleted")
	return nil
}

// Report flags a post for review.
func (w *Wall) Report(ctx context.Context, postID, reason string) error {
	form := ReportForm{Reason: strings.TrimSpace(reason)}
	if verr := validation.ValidateStruct(form); verr != nil {
		return verr
	}
	_, me := w.state()
	_, err := w.gw.Insert(ctx, models.TableReports, models.NewReport{
		ReporterID: me, TargetType: models.ReportPost, TargetID: postID, Reason: form.Reason,
	})
	if err != nil {
		w.notifier.Alert("Could not send report", err)
		return err
	}
	return nil
}

// SetAdmin grants or revokes admin rights. The community snapshot changes
// at once and is restored if the platform rejects the write. If the wall is
// remounted before the write resolves, the result is discarded.
func (w *Wall) SetAdmin(ctx context.Context, userID string, admin bool) error {
	pinned := w.community.Pin()
	c, ok := w.community.Get()
	if !ok || !pinned.Current() {
		return feed.ErrNotMounted
	}
	if !w.CanModerate() || userID == c.CreatorID {
		return ErrNotPermitted
	}
	was := slices.Contains(c.AdminIDs, userID)
	if was == admin {
		return nil
	}

	adminIDs := c.WithAdmin(userID, admin)
	_, err := optimistic.Run(ctx, pinned, optimistic.Mutation[models.Community, models.Community]{
		Name: "community_admin",
		Apply: func(c models.Community) models.Community {
			c.AdminIDs = c.WithAdmin(userID, admin)
			return c
		},
		Rollback: func(c models.Community) models.Community {
			c.AdminIDs = c.WithAdmin(userID, was)
			return c
		},
		Remote: func(ctx context.Context) (models.Community, error) {
			rows, err := platform.UpdateAs[models.Community](ctx, w.gw, models.TableCommunities,
				platform.Where("id", c.ID), map[string]any{"admin_ids": adminIDs})
			if err != nil {
				return models.Community{}, err
			}
			if len(rows) == 0 {
				return models.Community{}, platform.ErrNotFound
			}
			return rows[0], nil
		},
		Reconcile: func(_ models.Community, authoritative models.Community) models.Community {
			return authoritative
		},
		Notifier: w.notifier,
		Failure:  "Could not update admins",
		Current:  pinned.Current,
	})
	return err
}

// RemoveMember removes userID from the community. The member list changes
// at once and the member is put back if the platform rejects the delete,
// unless the wall has been remounted meanwhile.
func (w *Wall) RemoveMember(ctx context.Context, userID string) error {
	current := w.mounted()
	c, ok := w.community.Get()
	if !ok || !w.community.Mounted() {
		return feed.ErrNotMounted
	}
	if !w.CanModerate() || userID == c.CreatorID {
		return ErrNotPermitted
	}
	var removed *models.CommunityMember
	for _, m := range w.members.Load() {
		if m.UserID == userID {
			removed = &m
			break
		}
	}

	_, err := optimistic.Run(ctx, w.members, optimistic.Mutation[[]models.CommunityMember, struct{}]{
		Name: "community_member_removal",
		Apply: func(list []models.CommunityMember) []models.CommunityMember {
			return withoutMember(list, userID)
		},
		Rollback: func(list []models.CommunityMember) []models.CommunityMember {
			if removed == nil {
				return list
			}
			return insertMember(list, *removed)
		},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, w.gw.Delete(ctx, models.TableCommunityMembers,
				platform.Where("community_id", c.ID).Eq("user_id", userID))
		},
		Notifier: w.notifier,
		Failure:  "Could not remove member",
		Current:  current,
	})
	return err
}
