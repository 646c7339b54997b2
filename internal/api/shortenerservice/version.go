// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package shortenerservice

import (
	"context"
	"os"

	"github.com/google/event-shortener/internal/api"
)

type VersionRequest struct{}

func (VersionRequest) Validate() error { return nil }

type VersionResponse struct {
	Version string
}

// Version reports the running service revision.
func Version(ctx context.Context, req VersionRequest, _ *api.NoDeps) (*VersionResponse, error) {
	return &VersionResponse{Version: os.Getenv("K_REVISION")}, nil
}
