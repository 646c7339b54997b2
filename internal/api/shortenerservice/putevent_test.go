// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package shortenerservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/event-shortener/internal/api"
	"github.com/google/event-shortener/pkg/event"
	"github.com/google/event-shortener/pkg/offload"
	"github.com/google/event-shortener/pkg/offload/offloadtest"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	testNow  = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	testUUID = uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
)

func pinnedKeys() offload.KeyGen {
	return offload.KeyGen{
		Now:   func() time.Time { return testNow },
		NewID: func() uuid.UUID { return testUUID },
	}
}

func envelopeWithData(t *testing.T, data string) event.Envelope {
	t.Helper()
	body := fmt.Sprintf(`{"source":"com.mycompany.myapp","detail-type":"myDetailType","detail":{"metadata":{"env":"prod"},"data":%s}}`, data)
	e, err := event.NewEnvelope([]byte(body))
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return *e
}

// oversizedEnvelope returns an envelope whose dataToLarge field inflates the
// measured entry size to roughly 300,000 bytes.
func oversizedEnvelope(t *testing.T) event.Envelope {
	t.Helper()
	return envelopeWithData(t, fmt.Sprintf(`{"dataToLarge":"%s"}`, strings.Repeat("x", 300000)))
}

func decodeDescriptor(t *testing.T, e *event.Envelope) event.Descriptor {
	t.Helper()
	var d event.Descriptor
	if err := json.Unmarshal(e.Detail.Data, &d); err != nil {
		t.Fatalf("decoding rewritten detail.data: %v", err)
	}
	return d
}

func TestPutEventOversized(t *testing.T) {
	ctx := context.Background()
	fake := offloadtest.NewStore("events")
	fake.Keys = pinnedKeys()
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}
	e := oversizedEnvelope(t)
	originalData := append([]byte(nil), e.Detail.Data...)
	originalSize, err := event.EntrySize(&e)
	if err != nil {
		t.Fatalf("EntrySize: %v", err)
	}

	out, err := PutEvent(ctx, e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if fake.StoreCalls != 1 || fake.PresignCalls != 1 {
		t.Errorf("store/presign calls = %d/%d, want 1/1", fake.StoreCalls, fake.PresignCalls)
	}
	d := decodeDescriptor(t, out)
	if !d.Truncated {
		t.Error("Truncated = false, want true")
	}
	if d.OriginalSizeBytes != originalSize {
		t.Errorf("OriginalSizeBytes = %d, want %d", d.OriginalSizeBytes, originalSize)
	}
	if d.Bucket != "events" {
		t.Errorf("Bucket = %q, want %q", d.Bucket, "events")
	}
	if want := "2026/08/24/" + testUUID.String() + ".json"; d.Key != want {
		t.Errorf("Key = %q, want %q", d.Key, want)
	}
	if d.PresignedURL == "" {
		t.Error("PresignedURL is empty")
	}
	if d.URLExpiresAt == nil || !d.URLExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("URLExpiresAt = %v, want %v", d.URLExpiresAt, testNow.Add(time.Hour))
	}

	// The rewritten envelope must fit the limit.
	rewrittenSize, err := event.EntrySize(out)
	if err != nil {
		t.Fatalf("EntrySize(rewritten): %v", err)
	}
	if rewrittenSize > deps.SizeLimitBytes {
		t.Errorf("rewritten size %d exceeds limit %d", rewrittenSize, deps.SizeLimitBytes)
	}

	// Round trip: the stored object is exactly the original detail.data bytes.
	stored, err := fake.Fetch(ctx, offload.ObjectRef{Bucket: d.Bucket, Key: d.Key})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(stored, originalData) {
		t.Error("stored object differs from original detail.data")
	}
}

func TestPutEventUnderLimit(t *testing.T) {
	fake := offloadtest.NewStore("events")
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}
	// Pad the data so the measured entry size is exactly 500 bytes.
	probe := envelopeWithData(t, `{"filler":""}`)
	baseSize, err := event.EntrySize(&probe)
	if err != nil {
		t.Fatalf("EntrySize: %v", err)
	}
	e := envelopeWithData(t, fmt.Sprintf(`{"filler":"%s"}`, strings.Repeat("x", 500-baseSize)))

	out, err := PutEvent(context.Background(), e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if fake.StoreCalls != 0 || fake.PresignCalls != 0 {
		t.Errorf("store/presign calls = %d/%d, want 0/0", fake.StoreCalls, fake.PresignCalls)
	}
	d := decodeDescriptor(t, out)
	if d.Truncated {
		t.Error("Truncated = true, want false")
	}
	if d.OriginalSizeBytes != 500 {
		t.Errorf("OriginalSizeBytes = %d, want 500", d.OriginalSizeBytes)
	}
	if d.Bucket != "" || d.Key != "" || d.PresignedURL != "" || d.URLExpiresAt != nil {
		t.Errorf("storage-reference fields set on under-limit event: %+v", d)
	}
}

func TestPutEventBoundaryEqualsLimit(t *testing.T) {
	fake := offloadtest.NewStore("events")
	e := envelopeWithData(t, `{"k":"v"}`)
	size, err := event.EntrySize(&e)
	if err != nil {
		t.Fatalf("EntrySize: %v", err)
	}
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: size, PresignTTL: time.Hour}

	out, err := PutEvent(context.Background(), e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if d := decodeDescriptor(t, out); d.Truncated {
		t.Error("size equal to limit was classified as oversized")
	}
	if fake.StoreCalls != 0 {
		t.Errorf("store calls = %d, want 0", fake.StoreCalls)
	}
}

func TestPutEventStoreFailure(t *testing.T) {
	fake := offloadtest.NewStore("events")
	fake.StoreErr = offload.ErrUnavailable
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}

	out, err := PutEvent(context.Background(), oversizedEnvelope(t), deps)
	if err == nil {
		t.Fatal("PutEvent succeeded despite store failure")
	}
	if out != nil {
		t.Error("PutEvent returned a rewritten envelope alongside an error")
	}
	if code := status.Convert(err).Code(); code != codes.Unavailable {
		t.Errorf("status code = %v, want %v", code, codes.Unavailable)
	}
	if fake.PresignCalls != 0 {
		t.Errorf("presign calls = %d, want 0 after store failure", fake.PresignCalls)
	}
}

func TestPutEventPresignFailure(t *testing.T) {
	fake := offloadtest.NewStore("events")
	fake.PresignErr = offload.ErrUnavailable
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}

	if _, err := PutEvent(context.Background(), oversizedEnvelope(t), deps); err == nil {
		t.Fatal("PutEvent succeeded despite presign failure")
	} else if code := status.Convert(err).Code(); code != codes.Unavailable {
		t.Errorf("status code = %v, want %v", code, codes.Unavailable)
	}
	if fake.StoreCalls != 1 {
		t.Errorf("store calls = %d, want 1", fake.StoreCalls)
	}
}

func TestPutEventAugmentUnderLimit(t *testing.T) {
	fake := offloadtest.NewStore("events")
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour, AugmentUnderLimit: true}
	e := envelopeWithData(t, `{"id":7}`)

	out, err := PutEvent(context.Background(), e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	var data map[string]any
	if err := json.Unmarshal(out.Detail.Data, &data); err != nil {
		t.Fatalf("decoding augmented data: %v", err)
	}
	if _, ok := data["id"]; !ok {
		t.Error("augmented data lost the original content")
	}
	if truncated, ok := data["truncated"].(bool); !ok || truncated {
		t.Errorf("augmented data truncated = %v, want false", data["truncated"])
	}
}

func TestPutEventKeysAreUnique(t *testing.T) {
	ctx := context.Background()
	fake := offloadtest.NewStore("events")
	deps := &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}
	e := oversizedEnvelope(t)

	first, err := PutEvent(ctx, e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	second, err := PutEvent(ctx, e, deps)
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	if k1, k2 := decodeDescriptor(t, first).Key, decodeDescriptor(t, second).Key; k1 == k2 {
		t.Errorf("identical input produced the same key twice: %q", k1)
	}
	if stored := fake.StoredKeys(); len(stored) != 2 {
		t.Errorf("stored objects = %d, want 2", len(stored))
	}
}

func putEventServer(fake *offloadtest.Store) *httptest.Server {
	init := func(context.Context) (*PutEventDeps, error) {
		return &PutEventDeps{Store: fake, SizeLimitBytes: event.DefaultSizeLimitBytes, PresignTTL: time.Hour}, nil
	}
	return httptest.NewServer(api.Handler(init, PutEvent))
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp, buf.Bytes()
}

func TestPutEventHandlerMalformed(t *testing.T) {
	fake := offloadtest.NewStore("events")
	srv := putEventServer(fake)
	defer srv.Close()

	resp, body := postJSON(t, srv.URL, `{"source":"s","detail-type":"d","detail":{"data":{}}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var e api.ErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if e.ErrorKind != api.KindMalformedEvent {
		t.Errorf("errorKind = %q, want %q", e.ErrorKind, api.KindMalformedEvent)
	}
	if fake.StoreCalls != 0 {
		t.Errorf("store calls = %d, want 0 for malformed input", fake.StoreCalls)
	}
}

func TestPutEventHandlerStorageFailure(t *testing.T) {
	fake := offloadtest.NewStore("events")
	fake.StoreErr = offload.ErrUnavailable
	srv := putEventServer(fake)
	defer srv.Close()

	body := fmt.Sprintf(`{"source":"s","detail-type":"d","detail":{"metadata":{},"data":{"dataToLarge":"%s"}}}`, strings.Repeat("x", 300000))
	resp, respBody := postJSON(t, srv.URL, body)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}
	var e api.ErrorBody
	if err := json.Unmarshal(respBody, &e); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if e.ErrorKind != api.KindStorageUnavailable {
		t.Errorf("errorKind = %q, want %q", e.ErrorKind, api.KindStorageUnavailable)
	}
}

func TestPutEventHandlerSuccess(t *testing.T) {
	fake := offloadtest.NewStore("events")
	srv := putEventServer(fake)
	defer srv.Close()

	resp, body := postJSON(t, srv.URL, `{"source":"s","detail-type":"d","detail":{"metadata":{},"data":{"id":1}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d [body=%s]", resp.StatusCode, http.StatusOK, body)
	}
	var out event.Envelope
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding response envelope: %v", err)
	}
	if d := decodeDescriptor(t, &out); d.Truncated {
		t.Error("under-limit event reported truncated")
	}
}
