// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package offload stores oversized event content in object storage under
// date-partitioned, uniquely named keys and hands out time-limited retrieval
// URLs.
package offload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnavailable indicates the storage backend failed (network, permission,
// capacity). Callers may retry; this package never does.
var ErrUnavailable = errors.New("object storage unavailable")

// DefaultPresignTTL is the default validity window for retrieval URLs.
const DefaultPresignTTL = time.Hour

// ObjectRef locates a stored object.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Store is the capability interface over an object-storage backend.
//
// Store writes the given bytes under a freshly generated key and is atomic
// from the caller's point of view: either the object is durably written or an
// error is returned with no partial write visible to readers. Keys are random
// and write-once by construction; no collision detection is performed.
type Store interface {
	Store(ctx context.Context, data []byte) (ObjectRef, error)
	Presign(ctx context.Context, ref ObjectRef, ttl time.Duration) (url string, expiresAt time.Time, err error)
	Fetch(ctx context.Context, ref ObjectRef) ([]byte, error)
}

// KeyGen generates date-partitioned object keys. The zero value uses the real
// clock and random UUIDs; tests pin Now and NewID to assert exact keys.
type KeyGen struct {
	Now   func() time.Time
	NewID func() uuid.UUID
}

func (g KeyGen) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g KeyGen) newID() uuid.UUID {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.New()
}

// Next returns a fresh object key of the form YYYY/MM/DD/<uuid>.json, with the
// date taken from the generator's clock in UTC.
func (g KeyGen) Next() string {
	return fmt.Sprintf("%s/%s.json", g.now().UTC().Format("2006/01/02"), g.newID())
}
