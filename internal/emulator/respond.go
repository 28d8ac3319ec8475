// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/platform"
)

// errorBody is the error shape shared by every surface. Clients read
// message first, then error.
type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Code: code, Message: message, Error: http.StatusText(status)})
}

// respondErr maps engine errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	var remote *platform.RemoteError
	var auth *platform.AuthError
	switch {
	case errors.As(err, &remote):
		status := remote.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			logging.Error().Err(err).Str("table", remote.Table).Msg("Emulator request failed")
		}
		respondError(w, status, remote.Code, remote.Message)
	case errors.As(err, &auth):
		status := http.StatusBadRequest
		if errors.Is(err, platform.ErrNotSignedIn) {
			status = http.StatusUnauthorized
		}
		respondError(w, status, "", auth.Message)
	default:
		logging.Error().Err(err).Msg("Emulator request failed")
		respondError(w, http.StatusInternalServerError, "", "internal error")
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// bearer returns the bearer token from the Authorization header.
func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
