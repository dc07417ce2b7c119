// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the library engine.

It provides a rich error type that bridges the gap between low-level archive, site and
storage errors and the surfaces that report them (notifications, CLI, local API).

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Library kinds (WRONG_URL, NEED_LOGIN, CREATE_ARCHIVE_FAIL, ...) next to HTTP kinds.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves a component boundary should be wrapped as an [AppError] so callers
can branch on [IsCode] instead of string matching.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type of the library engine.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Gallery") // Returns "Gallery not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Unprocessable creates a 422 [AppError] for semantically invalid input.
func Unprocessable(msg string) *AppError {
	return &AppError{
		Code:       "UNPROCESSABLE",
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Library Errors

// Library error codes. They mirror the failure kinds the engine surfaces to the user.
const (
	CodeWrongURL                  = "WRONG_URL"
	CodeNeedLogin                 = "NEED_LOGIN"
	CodeWrongLogin                = "WRONG_LOGIN"
	CodeMetadataFetchFail         = "METADATA_FETCH_FAIL"
	CodeCreateArchiveFail         = "CREATE_ARCHIVE_FAIL"
	CodeFileNotFoundInArchive     = "FILE_NOT_FOUND_IN_ARCHIVE"
	CodeInternalPagesMismatch     = "INTERNAL_PAGES_MISMATCH"
	CodeChapterExists             = "CHAPTER_EXISTS"
	CodeChapterWrongParentGallery = "CHAPTER_WRONG_PARENT_GALLERY"
)

// WrongURL reports that a fetcher refuses a URL it does not own.
func WrongURL(url string) *AppError {
	return &AppError{
		Code:       CodeWrongURL,
		Message:    "URL is not supported: " + url,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NeedLogin reports that the site requires cookies that are missing.
func NeedLogin(site string) *AppError {
	return &AppError{
		Code:       CodeNeedLogin,
		Message:    "Login required for " + site,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// WrongLogin reports rejected credentials.
func WrongLogin(site string) *AppError {
	return &AppError{
		Code:       CodeWrongLogin,
		Message:    "Wrong login credentials for " + site,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// MetadataFetchFail wraps network or response-shape failures from a site.
func MetadataFetchFail(site string, cause error) *AppError {
	return &AppError{
		Code:       CodeMetadataFetchFail,
		Message:    "Failed to fetch metadata from " + site,
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// CreateArchiveFail reports a container that cannot be opened or failed its self-test.
func CreateArchiveFail(path string, cause error) *AppError {
	return &AppError{
		Code:       CodeCreateArchiveFail,
		Message:    "Cannot open archive: " + path,
		HTTPStatus: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// FileNotFoundInArchive reports a missing archive member.
func FileNotFoundInArchive(member string) *AppError {
	return &AppError{
		Code:       CodeFileNotFoundInArchive,
		Message:    "File not found in archive: " + member,
		HTTPStatus: http.StatusNotFound,
	}
}

// InternalPagesMismatch reports that a chapter's stored page count no longer matches its images.
func InternalPagesMismatch(path string, claimed, actual int) *AppError {
	return &AppError{
		Code:       CodeInternalPagesMismatch,
		Message:    fmt.Sprintf("Page count mismatch for %s: stored %d, found %d", path, claimed, actual),
		HTTPStatus: http.StatusConflict,
	}
}

// ChapterExists reports a duplicate chapter number within one gallery.
func ChapterExists(number int) *AppError {
	return &AppError{
		Code:       CodeChapterExists,
		Message:    fmt.Sprintf("Chapter %d already exists", number),
		HTTPStatus: http.StatusConflict,
	}
}

// ChapterWrongParentGallery reports a chapter added to a gallery it does not belong to.
func ChapterWrongParentGallery(chapterGallery, containerGallery int64) *AppError {
	return &AppError{
		Code:       CodeChapterWrongParentGallery,
		Message:    fmt.Sprintf("Chapter belongs to gallery %d, not %d", chapterGallery, containerGallery),
		HTTPStatus: http.StatusConflict,
	}
}

// # Helpers

// IsCode reports whether err carries an [*AppError] with the given code.
func IsCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
