// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package event defines the bus event envelope, its size measurement, and the
// offload descriptor that replaces oversized payload content.
package event

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedEvent indicates the request body failed structural validation.
var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the fixed bus event shape handled by this service.
//
// Detail.Data is kept as raw JSON so that the offloaded object contains the
// exact bytes the producer sent, not a re-encoding of them.
type Envelope struct {
	Source     string     `json:"source"`
	DetailType string     `json:"detail-type"`
	Time       *time.Time `json:"time,omitempty"`
	Resources  []string   `json:"resources,omitempty"`
	Detail     Detail     `json:"detail"`
}

// Detail is the envelope payload: producer metadata plus the data object that
// may be offloaded.
type Detail struct {
	Metadata map[string]any  `json:"metadata"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope parses raw request bytes into an Envelope and validates it.
func NewEnvelope(body []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks the required envelope fields.
func (e Envelope) Validate() error {
	switch {
	case e.Source == "":
		return errors.Wrap(ErrMalformedEvent, "missing source")
	case e.DetailType == "":
		return errors.Wrap(ErrMalformedEvent, "missing detail-type")
	case e.Detail.Metadata == nil:
		return errors.Wrap(ErrMalformedEvent, "missing detail.metadata")
	case !isJSONObject(e.Detail.Data):
		return errors.Wrap(ErrMalformedEvent, "missing detail.data")
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
