// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/chatflow/internal/cloud"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
		desc  string
	}{
		{"rate limited", &cloud.APIError{Status: 429, Kind: cloud.KindRateLimited}, "Rate Limit Exceeded",
			"You've sent too many requests. Please wait a moment before trying again."},
		{"auth", &cloud.APIError{Status: 401, Kind: cloud.KindUnauthenticated}, "Authentication Error",
			"Invalid API key. Please check your API key configuration."},
		{"forbidden", &cloud.APIError{Status: 403, Kind: cloud.KindForbidden}, "Access Denied",
			`Your API key doesn't have permission to access "m1". Please check if this model is available with your API key.`},
		{"not found", &cloud.APIError{Status: 404, Kind: cloud.KindNotFound}, "Model Not Found",
			`The model "m1" was not found. Please check if the model ID is correct in your configuration.`},
		{"model mention", &cloud.APIError{Status: 400, Kind: cloud.KindGeneric, Message: "m1 is not a valid model ID"}, "Model Error",
			`Error with model "m1": m1 is not a valid model ID`},
		{"generic", &cloud.APIError{Status: 500, Kind: cloud.KindGeneric, Message: "Internal Server Error"}, "Error",
			"Internal Server Error"},
		{"transport", errors.New("dial tcp: connection refused"), "Error", "dial tcp: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Classify(tt.err, "m1")
			assert.Equal(t, tt.title, n.Title)
			assert.Equal(t, tt.desc, n.Description)
			assert.Equal(t, LevelError, n.Level)
		})
	}
}
