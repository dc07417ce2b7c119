// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", ctxutil.GetRequestID(ctx))
}

/*
TestContext_JobID verifies that background jobs carry their identifier.
*/
func TestContext_JobID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ctxutil.GetJobID(ctx))

	ctx = ctxutil.WithJobID(ctx, "scan-42")
	assert.Equal(t, "scan-42", ctxutil.GetJobID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_Priority verifies the catalog priority default and clamping.
*/
func TestContext_Priority(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 999, ctxutil.GetPriority(ctx))

	assert.Equal(t, 1, ctxutil.GetPriority(ctxutil.WithPriority(ctx, 1)))
	assert.Equal(t, 0, ctxutil.GetPriority(ctxutil.WithPriority(ctx, -5)))
}
