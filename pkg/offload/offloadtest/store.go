// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package offloadtest provides an in-memory offload store for tests.
package offloadtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/event-shortener/pkg/offload"
	"github.com/pkg/errors"
)

// Store is an in-memory offload.Store that records calls and supports
// per-method failure injection.
type Store struct {
	Bucket string
	Keys   offload.KeyGen

	// When set, the corresponding method fails with the given error.
	StoreErr   error
	PresignErr error
	FetchErr   error

	mu           sync.Mutex
	objects      map[string][]byte
	StoreCalls   int
	PresignCalls int
	FetchCalls   int
}

// NewStore returns an empty in-memory store for the named bucket.
func NewStore(bucket string) *Store {
	return &Store{Bucket: bucket, objects: make(map[string][]byte)}
}

// Store records data under a fresh key.
func (s *Store) Store(ctx context.Context, data []byte) (offload.ObjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StoreCalls++
	if s.StoreErr != nil {
		return offload.ObjectRef{}, s.StoreErr
	}
	key := s.Keys.Next()
	s.objects[key] = append([]byte(nil), data...)
	return offload.ObjectRef{Bucket: s.Bucket, Key: key}, nil
}

// Presign returns a deterministic URL expiring at now+ttl.
func (s *Store) Presign(ctx context.Context, ref offload.ObjectRef, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PresignCalls++
	if s.PresignErr != nil {
		return "", time.Time{}, s.PresignErr
	}
	if ttl <= 0 {
		ttl = offload.DefaultPresignTTL
	}
	now := time.Now()
	if s.Keys.Now != nil {
		now = s.Keys.Now()
	}
	expiresAt := now.UTC().Add(ttl)
	url := fmt.Sprintf("https://storage.example/%s/%s?expires=%d", ref.Bucket, ref.Key, expiresAt.Unix())
	return url, expiresAt, nil
}

// Fetch returns a copy of previously stored bytes.
func (s *Store) Fetch(ctx context.Context, ref offload.ObjectRef) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchCalls++
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	data, ok := s.objects[ref.Key]
	if !ok {
		return nil, errors.Wrapf(offload.ErrUnavailable, "no object at %s", ref.Key)
	}
	return append([]byte(nil), data...), nil
}

// Keys returns the keys of all stored objects.
func (s *Store) StoredKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

var _ offload.Store = &Store{}
