// Skywave - Multi-listener Web SDR Audio Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skywave

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	streamKeyKey contextKey = "stream_key"
)

// GenerateRequestID returns a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithStreamKey returns a context carrying the stream key of the
// session a request operates on.
func ContextWithStreamKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, streamKeyKey, key)
}

// StreamKeyFromContext returns the stream key or "".
func StreamKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(streamKeyKey).(string); ok {
		return key
	}
	return ""
}

// Ctx returns the global logger enriched with request_id and stream_key when
// the context carries them.
//
//	logging.Ctx(r.Context()).Info().Msg("Stream opened")
func Ctx(ctx context.Context) *zerolog.Logger {
	lctx := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		lctx = lctx.Str("request_id", id)
	}
	if key := StreamKeyFromContext(ctx); key != "" {
		lctx = lctx.Str("stream_key", key)
	}
	l := lctx.Logger()
	return &l
}
