// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
	"github.com/taibuivan/happypanda/internal/platform/middleware"
)

type devConfig bool

func (d devConfig) IsDevelopment() bool { return bool(d) }

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	t.Run("Generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(constants.HeaderXRequestID))
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(constants.HeaderXRequestID, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(constants.HeaderXRequestID))
	})
}

/*
TestCORS checks that only loopback origins are allowed outside development.
*/
func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		dev     bool
		origin  string
		allowed bool
	}{
		{"Localhost", false, "http://localhost:3000", true},
		{"Loopback IP", false, "http://127.0.0.1:7006", true},
		{"Remote", false, "https://example.com", false},
		{"Remote in development", true, "https://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(constants.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			middleware.CORS(devConfig(tt.dev))(ok).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set(constants.HeaderOrigin, "http://localhost")
		rec := httptest.NewRecorder()
		middleware.CORS(devConfig(false))(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestIsLoopbackOrigin(t *testing.T) {
	assert.True(t, middleware.IsLoopbackOrigin("http://localhost"))
	assert.True(t, middleware.IsLoopbackOrigin("http://[::1]:8080"))
	assert.True(t, middleware.IsLoopbackOrigin("127.0.0.1"))
	assert.False(t, middleware.IsLoopbackOrigin("http://192.168.1.10"))
	assert.False(t, middleware.IsLoopbackOrigin("http://localhost.example.com"))
}

func TestPanicRecovery(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.PanicRecovery(log)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestStructuredLogger(t *testing.T) {
	var withLogger bool
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.StructuredLogger(log)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		withLogger = ctxutil.GetLogger(request.Context()) != slog.Default()
		writer.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, withLogger)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", middleware.RealIP(req))

	req.Header.Set(constants.HeaderXForwardedFor, "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", middleware.RealIP(req))

	req.Header.Set(constants.HeaderXRealIP, "5.6.7.8")
	assert.Equal(t, "5.6.7.8", middleware.RealIP(req))
}

/*
TestRateLimiter checks that writes run out before reads and clients are independent.
*/
func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limits := middleware.Limits{ReadRPS: 1, ReadBurst: 5, WriteRPS: 0.001, WriteBurst: 1}
	limiter := middleware.NewRateLimiter(ctx, limits)
	handler := limiter.Handler(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}))

	send := func(method, client string) int {
		req := httptest.NewRequest(method, "/api/v1/downloads", nil)
		if client != "" {
			req.Header.Set(constants.HeaderXClientName, client)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// 1. One write fits the burst, the second is rejected
	assert.Equal(t, http.StatusNoContent, send(http.MethodPost, "userscript"))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "userscript"))

	// 2. Reads of the same client use their own bucket
	assert.Equal(t, http.StatusNoContent, send(http.MethodGet, "userscript"))

	// 3. Another client still has its write budget
	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, "shell"))
	assert.Equal(t, http.StatusNoContent, send(http.MethodPost, ""))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	assert.Equal(t, "ip:127.0.0.1", middleware.ClientKey(req))

	req.Header.Set(constants.HeaderXClientName, " shell ")
	assert.Equal(t, "name:shell", middleware.ClientKey(req))
}
