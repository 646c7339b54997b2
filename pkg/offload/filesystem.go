// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// FilesystemStore is an offload store backed by a billy.Filesystem. Useful for
// local development and tests; the "presigned" URL is a file:// URL whose
// expiry is advisory rather than enforced.
type FilesystemStore struct {
	fs     billy.Filesystem
	bucket string
	Keys   KeyGen
}

// NewFilesystemStore creates a FilesystemStore. bucket is the logical bucket
// name reported in object references.
func NewFilesystemStore(fs billy.Filesystem, bucket string) *FilesystemStore {
	return &FilesystemStore{fs: fs, bucket: bucket}
}

// Store writes data under a fresh object key.
func (s *FilesystemStore) Store(ctx context.Context, data []byte) (ObjectRef, error) {
	key := s.Keys.Next()
	f, err := s.fs.Create(key)
	if err != nil {
		return ObjectRef{}, errors.Wrapf(ErrUnavailable, "creating %s: %v", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return ObjectRef{}, errors.Wrapf(ErrUnavailable, "writing %s: %v", key, err)
	}
	if err := f.Close(); err != nil {
		return ObjectRef{}, errors.Wrapf(ErrUnavailable, "closing %s: %v", key, err)
	}
	return ObjectRef{Bucket: s.bucket, Key: key}, nil
}

// Presign returns a file:// URL for the object, expiring at now+ttl.
func (s *FilesystemStore) Presign(ctx context.Context, ref ObjectRef, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	expiresAt := s.Keys.now().UTC().Add(ttl)
	u := url.URL{Scheme: "file", Path: path.Join("/", s.fs.Root(), ref.Key)}
	return u.String(), expiresAt, nil
}

// Fetch reads back a previously stored object.
func (s *FilesystemStore) Fetch(ctx context.Context, ref ObjectRef) ([]byte, error) {
	f, err := s.fs.Open(ref.Key)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "opening %s: %v", ref.Key, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "reading %s: %v", ref.Key, err)
	}
	return data, nil
}

var _ Store = &FilesystemStore{}
