// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package platform

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey returns a fresh storage key under owner's prefix, keeping the
// file extension of name so public URLs stay recognizable.
func ObjectKey(owner, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 8 || strings.ContainsAny(ext, "/?# ") {
		ext = ""
	}
	return owner + "/" + uuid.NewString() + ext
}

// UploadPublic stores data under a generated key and returns its public URL.
func UploadPublic(ctx context.Context, s Storage, bucket, owner, name, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &RemoteError{Op: "upload", Table: bucket, Message: "file is empty"}
	}
	key, err := s.Upload(ctx, bucket, ObjectKey(owner, name), contentType, data)
	if err != nil {
		return "", err
	}
	return s.PublicURL(bucket, key), nil
}

// File is a picked file awaiting upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether no file was picked.
func (f *File) Empty() bool { return f == nil || len(f.Data) == 0 }
