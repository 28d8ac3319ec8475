// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxObjectBytes caps uploaded objects.
const maxObjectBytes = 10 << 20

func (e *Emulator) upload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")

	defer func() { _ = r.Body.Close() }()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObjectBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "", "object too large")
		return
	}
	if _, err := e.engine.Put(bucket, key, r.Header.Get("Content-Type"), data); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"Key": bucket + "/" + key})
}

func (e *Emulator) download(w http.ResponseWriter, r *http.Request) {
	obj, ok := e.engine.Get(chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
	if !ok {
		respondError(w, http.StatusNotFound, "", "Object not found")
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
