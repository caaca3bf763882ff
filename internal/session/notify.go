// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/chatflow/internal/cloud"
)

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is a short user-facing message.
type Notice struct {
	Title       string
	Description string
	Level       Level
}

// Notifier receives notices. Implementations must not call back into the
// controller synchronously.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

// Classify maps a failed turn to the notice shown to the user.
func Classify(err error, modelID string) Notice {
	desc := err.Error()

	var apiErr *cloud.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case cloud.KindRateLimited:
			return errorNotice("Rate Limit Exceeded",
				"You've sent too many requests. Please wait a moment before trying again.")
		case cloud.KindUnauthenticated:
			return errorNotice("Authentication Error",
				"Invalid API key. Please check your API key configuration.")
		case cloud.KindForbidden:
			return errorNotice("Access Denied", fmt.Sprintf(
				"Your API key doesn't have permission to access %q. Please check if this model is available with your API key.", modelID))
		case cloud.KindNotFound:
			return errorNotice("Model Not Found", fmt.Sprintf(
				"The model %q was not found. Please check if the model ID is correct in your configuration.", modelID))
		}
		desc = apiErr.Message
	}

	lower := strings.ToLower(desc)
	if strings.Contains(lower, "model") || strings.Contains(lower, "not found") {
		return errorNotice("Model Error", fmt.Sprintf("Error with model %q: %s", modelID, desc))
	}
	return errorNotice("Error", desc)
}

func errorNotice(title, desc string) Notice {
	return Notice{Title: title, Description: desc, Level: LevelError}
}

func infoNotice(title, desc string) Notice {
	return Notice{Title: title, Description: desc, Level: LevelInfo}
}
