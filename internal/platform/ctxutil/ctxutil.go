// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/ctxkey"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Background Jobs

// WithJobID returns a new context tagged with a background job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyJobID, id)
}

// GetJobID retrieves the job identifier from the context.
func GetJobID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyJobID).(string)
	return id
}

// # Catalog Priority

// WithPriority returns a context whose catalog commands run at priority p.
// Lower values run first; negative values are clamped to zero.
func WithPriority(ctx context.Context, p int) context.Context {
	return context.WithValue(ctx, ctxkey.KeyPriority, max(p, 0))
}

// GetPriority returns the catalog priority carried by ctx, or the default.
func GetPriority(ctx context.Context) int {
	p, ok := ctx.Value(ctxkey.KeyPriority).(int)
	if !ok {
		return constants.DefaultPriority
	}
	return p
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}
