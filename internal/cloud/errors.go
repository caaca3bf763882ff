// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for classified OpenRouter failures. Match them with
// errors.Is against an *APIError.
var (
	// ErrRateLimited indicates too many requests were made (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthFailed indicates the API key was rejected (HTTP 401).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrForbidden indicates the key may not use the model (HTTP 403).
	ErrForbidden = errors.New("access forbidden")

	// ErrModelNotFound indicates the requested model does not exist (HTTP 404).
	ErrModelNotFound = errors.New("model not found")

	// ErrNoCredential indicates the call was made without an API key.
	ErrNoCredential = errors.New("OpenRouter API key not configured")
)

// ErrorKind classifies a non-success upstream response.
type ErrorKind string

// Error kinds.
const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindGeneric         ErrorKind = "generic"
)

// Fixed messages for statuses whose upstream text is not useful to a user.
const (
	msgRateLimited = "Rate limit exceeded. Please wait a moment before trying again."
	msgAuthFailed  = "Invalid API key. Please check your API key configuration."
	msgForbidden   = "Access forbidden. Please check your API key permissions."
)

// APIError represents a non-success response from the OpenRouter API.
type APIError struct {
	Status  int
	Kind    ErrorKind
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("OpenRouter error (HTTP %d): %s", e.Status, e.Message)
}

// Is implements errors.Is support for the classification sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrAuthFailed:
		return e.Kind == KindUnauthenticated
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrModelNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// StreamError represents a failure after streaming began, preserving the
// content delivered before the error.
type StreamError struct {
	Partial string // Content received before error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// handleErrorResponse converts a non-success response into an *APIError.
// The generic message comes from error.message, then message, then the raw
// body, then "API error: <status>".
func handleErrorResponse(statusCode int, body []byte) *APIError {
	e := &APIError{Status: statusCode, Kind: KindGeneric}

	var parsed apiErrorResponse
	text := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != nil {
			e.Code = strings.Trim(string(parsed.Error.Code), `"`)
			e.Message = parsed.Error.Message
		}
		if e.Message == "" {
			e.Message = parsed.Message
		}
	}
	if e.Message == "" {
		e.Message = text
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("API error: %d", statusCode)
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		e.Kind, e.Message = KindRateLimited, msgRateLimited
	case http.StatusUnauthorized:
		e.Kind, e.Message = KindUnauthenticated, msgAuthFailed
	case http.StatusForbidden:
		e.Kind, e.Message = KindForbidden, msgForbidden
	case http.StatusNotFound:
		e.Kind = KindNotFound
	}
	return e
}
