// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package shortenerservice implements the event shortening operation: measure
// an incoming envelope, offload its data content when oversized, and return
// the rewritten envelope.
package shortenerservice

import (
	"context"
	"time"

	"github.com/google/event-shortener/internal/api"
	"github.com/google/event-shortener/internal/metrics"
	"github.com/google/event-shortener/pkg/event"
	"github.com/google/event-shortener/pkg/offload"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
)

type PutEventDeps struct {
	Store          offload.Store
	SizeLimitBytes int
	PresignTTL     time.Duration
	// AugmentUnderLimit merges the descriptor fields into detail.data for
	// events under the limit instead of replacing the data object. Oversized
	// events always have their data replaced.
	AugmentUnderLimit bool
	Metrics           *metrics.EventMetrics
}

// PutEvent evaluates the envelope against the size limit and rewrites its
// detail.data with an offload descriptor. Oversized data is written to the
// offload store and presigned before the descriptor is built; on any storage
// failure no rewritten envelope is returned. No retries are attempted here.
func PutEvent(ctx context.Context, e event.Envelope, deps *PutEventDeps) (*event.Envelope, error) {
	limit := deps.SizeLimitBytes
	if limit <= 0 {
		limit = event.DefaultSizeLimitBytes
	}
	eval, err := event.Evaluate(&e, limit)
	if err != nil {
		return nil, api.AsStatus(codes.Internal,
			errors.Wrapf(err, "measuring event [source=%s,detail-type=%s]", e.Source, e.DetailType),
			api.Reason(api.KindSizeComputation))
	}
	var ref *event.StorageRef
	if eval.Oversized {
		obj, err := deps.Store.Store(ctx, e.Detail.Data)
		if err != nil {
			return nil, api.AsStatus(codes.Unavailable,
				errors.Wrapf(err, "storing event data [source=%s,detail-type=%s]", e.Source, e.DetailType),
				api.Reason(api.KindStorageUnavailable))
		}
		url, expiresAt, err := deps.Store.Presign(ctx, obj, deps.PresignTTL)
		if err != nil {
			return nil, api.AsStatus(codes.Unavailable,
				errors.Wrapf(err, "presigning event data [source=%s,detail-type=%s,key=%s]", e.Source, e.DetailType, obj.Key),
				api.Reason(api.KindStorageUnavailable))
		}
		ref = &event.StorageRef{Bucket: obj.Bucket, Key: obj.Key, PresignedURL: url, URLExpiresAt: expiresAt}
	}
	desc := event.NewDescriptor(eval, ref)
	var out *event.Envelope
	if !eval.Oversized && deps.AugmentUnderLimit {
		out, err = event.AugmentData(&e, desc)
	} else {
		out, err = event.ReplaceData(&e, desc)
	}
	if err != nil {
		return nil, api.AsStatus(codes.Internal,
			errors.Wrapf(err, "rewriting event [source=%s,detail-type=%s]", e.Source, e.DetailType))
	}
	deps.Metrics.ObserveEvent(e.DetailType, eval.SizeBytes, eval.Oversized)
	return out, nil
}
