// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package community

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/tomtom215/bookswap/internal/account"
	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// ErrNotPermitted is returned when a moderation action is attempted by a
// user who is neither the creator nor an admin.
var ErrNotPermitted = errors.New("only the community creator or an admin can do that")

// Form creates a community.
type Form struct {
	Name        string `json:"name" validate:"notblank,max=80"`
	Description string `json:"description" validate:"max=1000"`
}

// ReportForm flags a post.
type ReportForm struct {
	Reason string `json:"reason" validate:"notblank,max=500"`
}

// Service manages communities and memberships.
type Service struct {
	gw       platform.Gateway
	buckets  config.StorageConfig
	profiles *account.Directory
}

// NewService creates a community service.
func NewService(gw platform.Gateway, buckets config.StorageConfig, profiles *account.Directory) *Service {
	return &Service{gw: gw, buckets: buckets, profiles: profiles}
}

// Create inserts a community owned by the signed-in user and joins it.
// The image is optional.
func (s *Service) Create(ctx context.Context, form Form, image *platform.File) (models.Community, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	if verr := validation.ValidateStruct(form); verr != nil {
		return models.Community{}, verr
	}
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Community{}, err
	}

	row := models.NewCommunity{Name: form.Name, Description: form.Description, CreatorID: uid, AdminIDs: []string{}}
	if !image.Empty() {
		row.ImageURL, err = platform.UploadPublic(ctx, s.gw, s.buckets.CommunityBucket, uid, image.Name, image.ContentType, image.Data)
		if err != nil {
			return models.Community{}, err
		}
	}

	c, err := platform.InsertAs[models.Community](ctx, s.gw, models.TableCommunities, row)
	if err != nil {
		return models.Community{}, err
	}
	if err := s.Join(ctx, c.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("community_id", c.ID).Msg("Creator could not join new community")
	}
	logging.Ctx(ctx).Info().Str("community_id", c.ID).Str("name", c.Name).Msg("Community created")
	return c, nil
}

// List returns every community, newest first.
func (s *Service) List(ctx context.Context) ([]models.Community, error) {
	return platform.SelectAs[models.Community](ctx, s.gw, models.TableCommunities,
		platform.All().OrderBy("created_at", true))
}

// Get returns one community.
func (s *Service) Get(ctx context.Context, id string) (models.Community, error) {
	return platform.SelectOne[models.Community](ctx, s.gw, models.TableCommunities, platform.Where("id", id))
}

// Joined returns the communities the signed-in user belongs to.
func (s *Service) Joined(ctx context.Context) ([]models.Community, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return nil, err
	}
	rows, err := platform.SelectAs[models.CommunityMember](ctx, s.gw, models.TableCommunityMembers, platform.Where("user_id", uid))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Community{}, nil
	}
	ids := make([]string, len(rows))
	for i, m := range rows {
		ids[i] = m.CommunityID
	}
	return platform.SelectAs[models.Community](ctx, s.gw, models.TableCommunities,
		platform.All().In("id", ids...).OrderBy("created_at", true))
}

// Join adds the signed-in user to a community. Joining twice is not an error.
func (s *Service) Join(ctx context.Context, communityID string) error {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	_, err = s.gw.Insert(ctx, models.TableCommunityMembers, models.NewCommunityMember{CommunityID: communityID, UserID: uid})
	var re *platform.RemoteError
	if errors.As(err, &re) && re.Status == http.StatusConflict {
		return nil
	}
	return err
}

// Leave removes the signed-in user from a community.
func (s *Service) Leave(ctx context.Context, communityID string) error {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return err
	}
	return s.gw.Delete(ctx, models.TableCommunityMembers, platform.Where("community_id", communityID).Eq("user_id", uid))
}

// IsMember reports whether the signed-in user belongs to a community.
func (s *Service) IsMember(ctx context.Context, communityID string) (bool, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return false, err
	}
	_, err = platform.SelectOne[models.CommunityMember](ctx, s.gw, models.TableCommunityMembers,
		platform.Where("community_id", communityID).Eq("user_id", uid))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, platform.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Members lists a community's members with their profiles, in join order.
func (s *Service) Members(ctx context.Context, communityID string) ([]models.CommunityMember, error) {
	return members(ctx, s.gw, s.profiles, communityID)
}

func members(ctx context.Context, tables platform.Tables, profiles *account.Directory, communityID string) ([]models.CommunityMember, error) {
	rows, err := platform.SelectAs[models.CommunityMember](ctx, tables, models.TableCommunityMembers,
		platform.Where("community_id", communityID).OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, m := range rows {
		ids[i] = m.UserID
	}
	found, err := profiles.Many(ctx, ids)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Member profile lookup failed")
	}
	for i := range rows {
		if p, ok := found[rows[i].UserID]; ok {
			rows[i].Profile = &p
		}
	}
	return rows, nil
}

// insertMember puts m back into members at its join position.
func insertMember(list []models.CommunityMember, m models.CommunityMember) []models.CommunityMember {
	for _, have := range list {
		if have.ID == m.ID {
			return list
		}
	}
	i := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(m.CreatedAt) })
	out := make([]models.CommunityMember, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, m)
	return append(out, list[i:]...)
}

func withoutMember(list []models.CommunityMember, userID string) []models.CommunityMember {
	out := make([]models.CommunityMember, 0, len(list))
	for _, m := range list {
		if m.UserID != userID {
			out = append(out, m)
		}
	}
	return out
}
