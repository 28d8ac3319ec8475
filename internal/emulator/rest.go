// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bookswap/internal/models"
	"github.com/tomtom215/bookswap/internal/platform"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ownerColumns names the column that must equal the caller on insert.
var ownerColumns = map[string]string{
	models.TableProfiles:         "id",
	models.TableListings:         "seller_id",
	models.TableDrafts:           "seller_id",
	models.TableFavorites:        "user_id",
	models.TableReports:          "reporter_id",
	models.TableConversations:    "buyer_id",
	models.TableMessages:         "sender_id",
	models.TableCommunities:      "creator_id",
	models.TableCommunityPosts:   "author_id",
	models.TableCommunityMembers: "user_id",
}

func (e *Emulator) selectRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q, err := platform.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}
	rows, err := e.engine.Select(table, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// decodeRows accepts a single JSON object or an array of objects.
func decodeRows(r *http.Request) ([]map[string]any, error) {
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return []map[string]any{row}, nil
}

func (e *Emulator) insertRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	claims, _ := claimsFrom(r.Context())

	rows, err := decodeRows(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "PGRST102", "invalid JSON body")
		return
	}
	if col, ok := ownerColumns[table]; ok {
		for _, row := range rows {
			if owner, _ := row[col].(string); owner != claims.Subject {
				respondError(w, http.StatusForbidden, "42501",
					fmt.Sprintf("new row violates row-level security policy for table %q", table))
				return
			}
		}
	}

	stored := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out, err := e.engine.Insert(table, row)
		if err != nil {
			respondErr(w, err)
			return
		}
		stored = append(stored, out)
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (e *Emulator) updateRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q, err := platform.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}
	var patch map[string]any
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "PGRST102", "invalid JSON body")
		return
	}
	rows, err := e.engine.Update(table, q, patch)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (e *Emulator) deleteRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q, err := platform.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}
	if _, err := e.engine.Delete(table, q); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
