// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines the typed context keys of the engine.
//
// # Safety
//
// Keys carry the request id and logger of API calls, the job id of CLI commands,
// watcher events and downloads, and the catalog command priority. The key type is
// unexported so no other package can collide with them.
package ctxkey

// key is an unexported type used for context keys to ensure type safety.
type key string

const (
	// KeyRequestID is the context key for the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyLogger is the context key for the per-request [*log/slog.Logger].
	KeyLogger key = "logger"

	// KeyJobID is the context key for a background job identifier (scan, fetch, download).
	KeyJobID key = "job_id"

	// KeyPriority is the context key for the catalog command priority.
	KeyPriority key = "priority"
)
