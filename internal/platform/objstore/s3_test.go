// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package objstore_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/objstore"
)

func TestNew_RequiresBucket(t *testing.T) {
	_, err := objstore.New(context.Background(), objstore.Options{Region: "us-east-1"})
	assert.Error(t, err)
}

/*
TestStore_UploadFile sends a path-style PUT to a custom endpoint.
*/
func TestStore_UploadFile(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := objstore.New(context.Background(), objstore.Options{
		Bucket:    "library",
		Region:    "us-east-1",
		Endpoint:  server.URL,
		AccessKey: "access",
		SecretKey: "secret",
		Prefix:    "backups",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, "backups/happypanda.hpdb", store.Key("happypanda.hpdb"))

	local := filepath.Join(t.TempDir(), "happypanda.hpdb")
	require.NoError(t, os.WriteFile(local, []byte(`{"galleries":{}}`), 0o644))

	require.NoError(t, store.UploadFile(context.Background(), "happypanda.hpdb", local))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/library/backups/happypanda.hpdb", path)

	assert.Error(t, store.UploadFile(context.Background(), "missing", filepath.Join(t.TempDir(), "missing")))
}
