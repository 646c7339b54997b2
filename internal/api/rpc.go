// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package api provides the generic JSON request/response plumbing shared by
// service operations: body decoding, validation, dependency initialization,
// and error surfacing with a stable {errorKind, message} body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/event-shortener/internal/httpx"
	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Message is a request type that can validate its own structure.
type Message interface {
	Validate() error
}

type InitDeps[D any] func(context.Context) (D, error)
type HandlerFunc[I Message, O any, D any] func(context.Context, I, D) (*O, error)
type StubFunc[I Message, O any] func(context.Context, I) (*O, error)

// NoDeps is a zero-value dependency container.
type NoDeps struct{}

// NoDepsInit is an InitDeps that returns NoDeps.
func NoDepsInit(context.Context) (*NoDeps, error) { return &NoDeps{}, nil }

// Error kinds carried in the errorKind field of failure responses.
const (
	KindMalformedEvent     = "MalformedEventError"
	KindStorageUnavailable = "StorageUnavailableError"
	KindSizeComputation    = "SizeComputationError"
	KindInternal           = "InternalError"
)

var (
	ErrNotOK       = errors.New("non-OK response")
	ErrExhausted   = status.New(codes.ResourceExhausted, "resource exhausted").Err()
	ErrUnavailable = status.New(codes.Unavailable, "service unavailable").Err()
)

// ErrorBody is the JSON body of every failure response.
type ErrorBody struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// AsStatus creates a gRPC status with the given code and error message.
// Optionally accepts status details to attach to the error.
func AsStatus(code codes.Code, err error, details ...proto.Message) error {
	s := status.New(code, err.Error())
	if len(details) == 0 {
		return s.Err()
	}
	p := s.Proto()
	for _, detail := range details {
		m, err := anypb.New(detail)
		if err != nil {
			log.Printf("Skipping detail which failed to convert: detail=%v,err=%v", detail, err)
			continue
		}
		p.Details = append(p.Details, m)
	}
	return status.FromProto(p).Err()
}

// Reason is a convenience function for creating a detail proto carrying the
// errorKind surfaced to clients.
func Reason(kind string) proto.Message {
	return &errdetails.ErrorInfo{Reason: kind, Domain: "event-shortener"}
}

// RetryAfter is a convenience function for creating a detail proto for retry
// information.
// NOTE: For HTTP, should be limited to use with Unavailable and ResourceExhausted codes.
func RetryAfter(after time.Duration) proto.Message {
	return &errdetails.RetryInfo{
		RetryDelay: durationpb.New(after),
	}
}

var grpcToHTTP = map[codes.Code]int{
	codes.OK:                 http.StatusOK,
	codes.Canceled:           499, // Client Closed Request
	codes.Unknown:            http.StatusInternalServerError,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.Aborted:            http.StatusConflict,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.Internal:           http.StatusInternalServerError,
	// The storage backend is an upstream dependency of this service, so its
	// unavailability is a gateway failure rather than our own.
	codes.Unavailable: http.StatusBadGateway,
	codes.DataLoss:    http.StatusInternalServerError,
}

func writeError(rw http.ResponseWriter, httpStatus int, kind, message string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)
	if err := json.NewEncoder(rw).Encode(ErrorBody{ErrorKind: kind, Message: message}); err != nil {
		log.Println(errors.Wrap(err, "encoding error response"))
	}
}

// Handler adapts a typed operation into an http.HandlerFunc. The request body
// is decoded as JSON into I and validated before dependencies are initialized
// and the operation invoked.
func Handler[I Message, O any, D any](initDeps InitDeps[D], handler HandlerFunc[I, O, D]) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req I
		// An empty body decodes to the zero request; operations that require
		// fields reject it in Validate.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			log.Println(errors.Wrap(err, "parsing request"))
			writeError(rw, http.StatusBadRequest, KindMalformedEvent, "request body is not a valid event")
			return
		}
		if err := req.Validate(); err != nil {
			log.Println(errors.Wrap(err, "validating request"))
			writeError(rw, http.StatusBadRequest, KindMalformedEvent, err.Error())
			return
		}
		deps, err := initDeps(ctx)
		if err != nil {
			log.Println(errors.Wrap(err, "initializing dependencies"))
			writeError(rw, http.StatusInternalServerError, KindInternal, http.StatusText(http.StatusInternalServerError))
			return
		}
		o, err := handler(ctx, req, deps)
		s := status.Convert(err)
		kind := KindInternal
		for _, detail := range s.Details() {
			switch d := detail.(type) {
			case *errdetails.RetryInfo:
				if d.RetryDelay != nil {
					if seconds := int(d.RetryDelay.Seconds); seconds > 0 {
						rw.Header().Set("Retry-After", strconv.Itoa(seconds))
					}
				}
			case *errdetails.ErrorInfo:
				if d.Reason != "" {
					kind = d.Reason
				}
			}
		}
		httpStatus, ok := grpcToHTTP[s.Code()]
		if !ok {
			log.Printf("unknown error code: %s\n", s.Code())
			httpStatus = http.StatusInternalServerError
		}
		if httpStatus != http.StatusOK {
			log.Println(s.Err())
			// Use s.Message() as the body rather than err.Error() to avoid the
			// verbose grpc rendering when err is already a status.
			writeError(rw, httpStatus, kind, s.Message())
			return
		}
		if o != nil {
			rw.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(rw).Encode(o); err != nil {
				log.Println(errors.Wrap(err, "encoding response"))
				writeError(rw, http.StatusInternalServerError, KindInternal, http.StatusText(http.StatusInternalServerError))
			}
		}
	}
}

// Stub returns a client for an operation served by Handler at the given URL.
func Stub[I Message, O any](client httpx.BasicClient, u *url.URL) StubFunc[I, O] {
	return func(ctx context.Context, i I) (*O, error) {
		if err := i.Validate(); err != nil {
			return nil, errors.Wrap(err, "validating request")
		}
		body, err := json.Marshal(i)
		if err != nil {
			return nil, errors.Wrap(err, "serializing request")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "building http request")
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "making http request")
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK: // Success: Skip error generation
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			if retryAfterStr := resp.Header.Get("Retry-After"); retryAfterStr != "" {
				if seconds, err := strconv.Atoi(retryAfterStr); err == nil && seconds > 0 {
					d := time.Duration(seconds) * time.Second
					return nil, AsStatus(codes.Unavailable, ErrUnavailable, RetryAfter(d))
				}
			}
			return nil, ErrUnavailable
		case http.StatusTooManyRequests:
			return nil, ErrExhausted
		default:
			var eb ErrorBody
			if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.ErrorKind != "" {
				return nil, errors.Wrapf(ErrNotOK, "%s: %s: %s", resp.Status, eb.ErrorKind, eb.Message)
			}
			return nil, errors.Wrap(ErrNotOK, resp.Status)
		}
		var o O
		if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
			return nil, errors.Wrap(err, "decoding response")
		}
		return &o, nil
	}
}
