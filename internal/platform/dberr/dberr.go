// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// The action names the failed operation and is kept in the cause for logging.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Constraint violations (duplicate path, duplicate chapter number)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		conflict := apperr.Conflict("Duplicate entry while trying to " + action)
		conflict.Cause = err
		return conflict
	}

	// 3. Unknown query errors become Internal errors
	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}
