// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "title", "Happypanda", false},
		{"empty_string", "title", "", true},
		{"whitespace_only", "title", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_HTTPURL checks the download URL rule.
*/
func TestValidator_HTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		isValid bool
	}{
		{"http", "http://g.e-hentai.org/g/1004208/ee717823cd/", true},
		{"https", "https://nhentai.net/g/177013/", true},
		{"no_scheme", "nhentai.net/g/1", false},
		{"ftp", "ftp://example.com/file.zip", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.HTTPURL("url", tt.url)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

/*
TestValidator_NotFuture accepts today and rejects tomorrow.
*/
func TestValidator_NotFuture(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	today := now.Add(10 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	assert.False(t, (&validate.Validator{}).NotFuture("pub_date", &today, now).HasErrors())
	assert.True(t, (&validate.Validator{}).NotFuture("pub_date", &tomorrow, now).HasErrors())
	assert.False(t, (&validate.Validator{}).NotFuture("pub_date", nil, now).HasErrors())
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("title", "").            // Fails
		Range("rating", 7, 0, 5).         // Fails
		NotNegative("times_read", -1).    // Fails
		OneOf("type", "Manga", "Manga").  // Passes
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	// Should accumulate all 3 errors
	assert.Len(t, ae.Details, 3)
}
