// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatNotFound is returned when no active or archived chat has the id.
	// Use errors.Is(err, ErrChatNotFound) to check for this error.
	ErrChatNotFound = &StoreError{Message: "chat not found"}

	// ErrFolderNotFound is returned when no folder has the id.
	ErrFolderNotFound = &StoreError{Message: "folder not found"}

	// ErrInvalidName is returned for empty folder names and tags.
	ErrInvalidName = &StoreError{Message: "name must not be empty"}

	// ErrWatchUnsupported is returned by Watch when the backend cannot
	// observe out-of-band changes.
	ErrWatchUnsupported = &StoreError{Message: "backend does not support watching"}
)

// StoreError represents a store-level error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
