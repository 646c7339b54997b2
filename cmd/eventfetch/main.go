// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// main retrieves offloaded event data by object key and writes it to stdout or
// a file. Intended for consumers and operators verifying offloaded content.
package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/event-shortener/pkg/offload"
	"github.com/pkg/errors"
)

var (
	storage = flag.String("storage", os.Getenv("SHORTENER_STORAGE"), "offload location as gs://bucket or file:///path")
	out     = flag.String("o", "", "write the object to this file instead of stdout")
)

func fetch(ctx context.Context, location, key string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrap(err, "parsing storage location")
	}
	var store offload.Store
	switch u.Scheme {
	case "gs":
		store, err = offload.NewGCSStore(ctx, u.Host)
		if err != nil {
			return nil, err
		}
	case "file":
		store = offload.NewFilesystemStore(osfs.New(u.Path), u.Path)
	default:
		return nil, errors.Errorf("unsupported scheme: '%s'", u.Scheme)
	}
	return store.Fetch(ctx, offload.ObjectRef{Bucket: u.Host, Key: key})
}

func main() {
	flag.Parse()
	if *storage == "" || flag.NArg() != 1 {
		log.Fatalf("usage: %s -storage gs://bucket [-o file] <object-key>", os.Args[0])
	}
	data, err := fetch(context.Background(), *storage, flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to fetch object: %v", err)
	}
	if *out != "" {
		if err := os.WriteFile(*out, data, 0644); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		return
	}
	if _, err := os.Stdout.Write(data); err != nil {
		log.Fatalln(err)
	}
}
