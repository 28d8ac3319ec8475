// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package account

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/bookswap/internal/config"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
	"github.com/tomtom215/bookswap/internal/validation"
)

// SignUpForm is the registration form.
type SignUpForm struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"display_name" validate:"notblank,max=60"`
}

// SignInForm is the sign-in form.
type SignInForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileForm edits the signed-in user's profile.
type ProfileForm struct {
	DisplayName string `json:"display_name" validate:"notblank,max=60"`
	Bio         string `json:"bio" validate:"max=500"`
}

// Service is the account surface used by the screens.
type Service struct {
	gw       platform.Gateway
	buckets  config.StorageConfig
	profiles *Directory
}

// NewService creates an account service.
func NewService(gw platform.Gateway, buckets config.StorageConfig, profiles *Directory) *Service {
	return &Service{gw: gw, buckets: buckets, profiles: profiles}
}

// SignUp validates the form, registers the account and creates its profile.
// When the platform requires email confirmation no session is returned yet
// and the profile is created on first sign-in.
func (s *Service) SignUp(ctx context.Context, form SignUpForm) (*models.Session, error) {
	form.Email = strings.TrimSpace(form.Email)
	form.DisplayName = strings.TrimSpace(form.DisplayName)
	if verr := validation.ValidateStruct(form); verr != nil {
		return nil, verr
	}

	session, err := s.gw.SignUp(ctx, form.Email, form.Password)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		logging.Ctx(ctx).Info().Str("email", form.Email).Msg("Sign-up pending email confirmation")
		return session, nil
	}

	profile, err := platform.InsertAs[models.Profile](ctx, s.gw, models.TableProfiles, models.NewProfile{
		ID:          session.User.ID,
		DisplayName: form.DisplayName,
	})
	if err != nil {
		return session, err
	}
	s.profiles.Remember(profile)
	return session, nil
}

// SignIn validates the form and signs in. A missing profile (sign-up that
// waited for confirmation) is created from the email's local part.
func (s *Service) SignIn(ctx context.Context, form SignInForm) (*models.Session, error) {
	form.Email = strings.TrimSpace(form.Email)
	if verr := validation.ValidateStruct(form); verr != nil {
		return nil, verr
	}
	session, err := s.gw.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.Get(ctx, session.User.ID); errors.Is(err, platform.ErrNotFound) {
		name, _, _ := strings.Cut(form.Email, "@")
		profile, err := platform.InsertAs[models.Profile](ctx, s.gw, models.TableProfiles, models.NewProfile{ID: session.User.ID, DisplayName: name})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to create missing profile")
		} else {
			s.profiles.Remember(profile)
		}
	}
	return session, nil
}

// SignOut ends the session.
func (s *Service) SignOut(ctx context.Context) error {
	return s.gw.SignOut(ctx)
}

// ResetPassword requests a password reset email.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if verr := validation.ValidateStruct(struct {
		Email string `json:"email" validate:"required,email"`
	}{email}); verr != nil {
		return verr
	}
	return s.gw.ResetPassword(ctx, email)
}

// CurrentUser returns the signed-in user.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	return s.gw.CurrentUser(ctx)
}

// Profile returns any user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (models.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// MyProfile returns the signed-in user's profile.
func (s *Service) MyProfile(ctx context.Context) (models.Profile, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Profile{}, err
	}
	return s.profiles.Get(ctx, uid)
}

// UpdateProfile saves the profile form.
func (s *Service) UpdateProfile(ctx context.Context, form ProfileForm) (models.Profile, error) {
	form.DisplayName = strings.TrimSpace(form.DisplayName)
	if verr := validation.ValidateStruct(form); verr != nil {
		return models.Profile{}, verr
	}
	return s.patchProfile(ctx, map[string]any{"display_name": form.DisplayName, "bio": form.Bio})
}

// UploadAvatar stores an image and points the profile at it.
func (s *Service) UploadAvatar(ctx context.Context, filename, contentType string, data []byte) (models.Profile, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Profile{}, err
	}
	url, err := platform.UploadPublic(ctx, s.gw, s.buckets.AvatarBucket, uid, filename, contentType, data)
	if err != nil {
		return models.Profile{}, err
	}
	return s.patchProfile(ctx, map[string]any{"avatar_url": url})
}

func (s *Service) patchProfile(ctx context.Context, patch map[string]any) (models.Profile, error) {
	uid, err := platform.UserID(s.gw)
	if err != nil {
		return models.Profile{}, err
	}
	rows, err := platform.UpdateAs[models.Profile](ctx, s.gw, models.TableProfiles, platform.Where("id", uid), patch)
	if err != nil {
		return models.Profile{}, err
	}
	if len(rows) == 0 {
		return models.Profile{}, platform.ErrNotFound
	}
	s.profiles.Remember(rows[0])
	return rows[0], nil
}
