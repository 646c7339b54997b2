// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GCSStore is an offload store backed by Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	bucket string
	Keys   KeyGen
}

// NewGCSStore creates a GCSStore writing into the named bucket.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Store writes data under a fresh object key.
func (s *GCSStore) Store(ctx context.Context, data []byte) (ObjectRef, error) {
	key := s.Keys.Next()
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		return ObjectRef{}, errors.Wrapf(ErrUnavailable, "writing gs://%s/%s: %v", s.bucket, key, err)
	}
	// The object only becomes visible on a successful Close.
	if err := w.Close(); err != nil {
		return ObjectRef{}, errors.Wrapf(ErrUnavailable, "finalizing gs://%s/%s: %v", s.bucket, key, err)
	}
	return ObjectRef{Bucket: s.bucket, Key: key}, nil
}

// Presign returns a V4 signed GET URL for the object, expiring at now+ttl.
func (s *GCSStore) Presign(ctx context.Context, ref ObjectRef, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	expiresAt := s.Keys.now().UTC().Add(ttl)
	url, err := s.client.Bucket(ref.Bucket).SignedURL(ref.Key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, errors.Wrapf(ErrUnavailable, "signing gs://%s/%s: %v", ref.Bucket, ref.Key, err)
	}
	return url, expiresAt, nil
}

// Fetch reads back a previously stored object.
func (s *GCSStore) Fetch(ctx context.Context, ref ObjectRef) ([]byte, error) {
	r, err := s.client.Bucket(ref.Bucket).Object(ref.Key).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "reading gs://%s/%s: %v", ref.Bucket, ref.Key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "reading gs://%s/%s: %v", ref.Bucket, ref.Key, err)
	}
	return data, nil
}

var _ Store = &GCSStore{}
