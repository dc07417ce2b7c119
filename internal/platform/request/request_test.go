// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestutil "github.com/taibuivan/happypanda/internal/platform/request"
	"github.com/taibuivan/happypanda/internal/platform/validate"
)

func withParam(request *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return request.WithContext(context.WithValue(request.Context(), chi.RouteCtxKey, routeCtx))
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		URL string `json:"url"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://nhentai.net/g/1/"}`))
	require.NoError(t, requestutil.DecodeJSON(req, &body))
	assert.Equal(t, "https://nhentai.net/g/1/", body.URL)

	huge := `{"url":"` + strings.Repeat("a", 70<<10) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	assert.ErrorIs(t, requestutil.DecodeJSON(req, &body), validate.ErrInvalidJSON)
}

func TestInt64Param(t *testing.T) {
	tests := []struct {
		raw    string
		expect int64
		ok     bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.raw)
			id, err := requestutil.Int64Param(req, "id")
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.expect, id)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBoolQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?trash=true&files=maybe", nil)
	assert.True(t, requestutil.BoolQuery(req, "trash", false))
	assert.True(t, requestutil.BoolQuery(req, "files", true))
	assert.False(t, requestutil.BoolQuery(req, "missing", false))
}
