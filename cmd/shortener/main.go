// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// main serves the event shortening API: POST /putevent accepts a bus event
// envelope, offloads oversized detail.data to object storage, and returns the
// rewritten envelope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/event-shortener/internal/api"
	"github.com/google/event-shortener/internal/api/shortenerservice"
	"github.com/google/event-shortener/internal/metrics"
	"github.com/google/event-shortener/pkg/event"
	"github.com/google/event-shortener/pkg/offload"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		// Accept bare seconds for parity with the hosting environment's
		// integer TTL variables.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func makeStore(ctx context.Context, location string) (offload.Store, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrap(err, "parsing storage location")
	}
	switch u.Scheme {
	case "gs":
		return offload.NewGCSStore(ctx, u.Host)
	case "file":
		if err := os.MkdirAll(u.Path, 0755); err != nil {
			return nil, errors.Wrap(err, "creating storage dir")
		}
		return offload.NewFilesystemStore(osfs.New(u.Path), u.Path), nil
	default:
		return nil, errors.Errorf("unsupported scheme: '%s'", u.Scheme)
	}
}

func main() {
	// Load .env before flag registration so env-derived defaults see it.
	_ = godotenv.Load()
	storage := flag.String("storage", envOr("SHORTENER_STORAGE", ""), "offload location as gs://bucket or file:///path")
	sizeLimit := flag.Int("size-limit", envOrInt("SHORTENER_SIZE_LIMIT", event.DefaultSizeLimitBytes), "bus entry size limit in bytes")
	presignTTL := flag.Duration("presign-ttl", envOrDuration("SHORTENER_URL_EXP_TIME", offload.DefaultPresignTTL), "validity window of retrieval URLs")
	augmentUnderLimit := flag.Bool("augment-under-limit", false, "merge descriptor fields into detail.data for under-limit events instead of replacing it")
	port := flag.Int("port", 8080, "port to serve on")
	flag.Parse()
	if *storage == "" {
		log.Fatalln("-storage must be provided (gs://bucket or file:///path)")
	}
	store, err := makeStore(context.Background(), *storage)
	if err != nil {
		log.Fatalf("Failed to create offload store: %v", err)
	}
	eventMetrics := metrics.MustNewEventMetrics(nil)
	putEventInit := func(ctx context.Context) (*shortenerservice.PutEventDeps, error) {
		return &shortenerservice.PutEventDeps{
			Store:             store,
			SizeLimitBytes:    *sizeLimit,
			PresignTTL:        *presignTTL,
			AugmentUnderLimit: *augmentUnderLimit,
			Metrics:           eventMetrics,
		}, nil
	}
	http.HandleFunc("/putevent", api.Handler(putEventInit, shortenerservice.PutEvent))
	http.HandleFunc("/version", api.Handler(api.NoDepsInit, shortenerservice.Version))
	http.Handle("/metrics", promhttp.Handler())
	log.Printf("serving on :%d [storage=%s,limit=%d,ttl=%s]", *port, *storage, *sizeLimit, *presignTTL)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), nil); err != nil {
		log.Fatalln(err)
	}
}
