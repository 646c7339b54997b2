// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrSizeComputation indicates the envelope could not be serialized for
// measurement.
var ErrSizeComputation = errors.New("event size computation failed")

// DefaultSizeLimitBytes is the bus PutEvents entry limit (256KB).
const DefaultSizeLimitBytes = 262144

// timeFieldSize is the fixed size the bus attributes to a populated time field.
const timeFieldSize = 14

// EntrySize returns the size in bytes of the envelope as counted against the
// bus entry limit: the UTF-8 lengths of source, detail-type, and each resource
// entry, the JSON encoding of detail, plus a fixed cost for the time field
// when present.
func EntrySize(e *Envelope) (int, error) {
	size := 0
	if e.Time != nil {
		size += timeFieldSize
	}
	size += len(e.Source)
	size += len(e.DetailType)
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return 0, errors.Wrap(ErrSizeComputation, err.Error())
	}
	size += len(detail)
	for _, r := range e.Resources {
		size += len(r)
	}
	return size, nil
}

// Evaluation is the result of measuring an envelope against a size limit.
type Evaluation struct {
	Oversized bool
	SizeBytes int
}

// Evaluate measures the envelope and classifies it against limit. The boundary
// is inclusive: an envelope whose size equals the limit is not oversized.
func Evaluate(e *Envelope, limit int) (Evaluation, error) {
	size, err := EntrySize(e)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Oversized: size > limit, SizeBytes: size}, nil
}
