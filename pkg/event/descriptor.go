// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Descriptor is the metadata block that takes the place of (or annotates) the
// envelope's detail.data, describing whether and where content was offloaded.
//
// Storage-reference fields are set if and only if Truncated is true. They are
// omitted from the JSON encoding when empty; consumers must treat absent and
// null alike.
type Descriptor struct {
	Truncated         bool       `json:"truncated"`
	OriginalSizeBytes int        `json:"originalSizeBytes"`
	Bucket            string     `json:"bucket,omitempty"`
	Key               string     `json:"key,omitempty"`
	PresignedURL      string     `json:"presignedUrl,omitempty"`
	URLExpiresAt      *time.Time `json:"urlExpiresAt,omitempty"`
}

// StorageRef locates offloaded content and its time-limited retrieval URL.
type StorageRef struct {
	Bucket       string
	Key          string
	PresignedURL string
	URLExpiresAt time.Time
}

// NewDescriptor builds the descriptor for an evaluated envelope. ref must be
// non-nil exactly when the evaluation was oversized.
func NewDescriptor(eval Evaluation, ref *StorageRef) Descriptor {
	d := Descriptor{
		Truncated:         eval.Oversized,
		OriginalSizeBytes: eval.SizeBytes,
	}
	if ref != nil {
		d.Bucket = ref.Bucket
		d.Key = ref.Key
		d.PresignedURL = ref.PresignedURL
		expiry := ref.URLExpiresAt
		d.URLExpiresAt = &expiry
	}
	return d
}

// ReplaceData returns a copy of e whose detail.data is exactly the descriptor.
// The input envelope is not modified.
func ReplaceData(e *Envelope, d Descriptor) (*Envelope, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "encoding descriptor")
	}
	out := *e
	out.Detail = Detail{Metadata: e.Detail.Metadata, Data: data}
	return &out, nil
}

// AugmentData returns a copy of e whose detail.data keeps the original content
// with the descriptor fields merged in alongside it. Only valid for envelopes
// that were not truncated; truncated data must not reappear on the bus.
func AugmentData(e *Envelope, d Descriptor) (*Envelope, error) {
	if d.Truncated {
		return nil, errors.New("cannot augment truncated data")
	}
	var merged map[string]any
	if err := json.Unmarshal(e.Detail.Data, &merged); err != nil {
		return nil, errors.Wrap(err, "decoding detail.data")
	}
	fields, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "encoding descriptor")
	}
	var overlay map[string]any
	if err := json.Unmarshal(fields, &overlay); err != nil {
		return nil, errors.Wrap(err, "decoding descriptor")
	}
	for k, v := range overlay {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "encoding merged detail.data")
	}
	out := *e
	out.Detail = Detail{Metadata: e.Detail.Metadata, Data: data}
	return &out, nil
}
