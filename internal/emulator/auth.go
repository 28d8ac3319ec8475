// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

func (e *Emulator) session(user models.User) (sessionResponse, error) {
	token, exp, err := e.tokens.Issue(user)
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int(time.Until(exp).Seconds()),
		ExpiresAt:    exp.Unix(),
		RefreshToken: uuid.NewString(),
		User:         user,
	}, nil
}

// signUp registers and, since emails are confirmed at once, signs in.
func (e *Emulator) signUp(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeBody(r, &creds); err != nil {
		respondError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	user, err := e.engine.Register(creds.Email, creds.Password)
	if err != nil {
		respondErr(w, err)
		return
	}
	resp, err := e.session(user)
	if err != nil {
		respondErr(w, err)
		return
	}
	logging.Info().Str("user_id", user.ID).Msg("Account registered")
	respondJSON(w, http.StatusOK, resp)
}

// token handles grant_type=password.
func (e *Emulator) token(w http.ResponseWriter, r *http.Request) {
	if grant := r.URL.Query().Get("grant_type"); grant != "password" {
		respondError(w, http.StatusBadRequest, "unsupported_grant_type", "only the password grant is supported")
		return
	}
	var creds credentials
	if err := decodeBody(r, &creds); err != nil {
		respondError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	user, err := e.engine.Authenticate(creds.Email, creds.Password)
	if err != nil {
		respondErr(w, err)
		return
	}
	resp, err := e.session(user)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// logout revokes the caller's token.
func (e *Emulator) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	e.tokens.Revoke(claims)
	w.WriteHeader(http.StatusNoContent)
}

func (e *Emulator) currentUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	user, ok := e.engine.UserByID(claims.Subject)
	if !ok {
		respondError(w, http.StatusNotFound, "", "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// recoverPassword accepts any address and never reveals whether it is known.
func (e *Emulator) recoverPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	logging.Info().Bool("known", e.engine.KnownEmail(body.Email)).Msg("Password reset requested")
	respondJSON(w, http.StatusOK, struct{}{})
}
