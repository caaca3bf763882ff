// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "Hello", "Hello"},
		{"literal sentence", "Explain quicksort in one paragraph.", "Explain quicksort in one paragraph."},
		{"whitespace collapsed", "  Hello \n\n  world  ", "Hello world"},
		{"fenced code stripped", "Fix this ```go\nfunc main() {}\n``` please", "Fix this please"},
		{"inline code stripped", "What does `len(x)` return?", "What does return?"},
		{
			"first sentence",
			"How do I reverse a list in Go? I have tried several approaches and none of them worked for me.",
			"How do I reverse a list in Go?",
		},
		{
			"keyword summary",
			"Please explain the differences between goroutines and operating system threads, including scheduling and memory usage",
			"Please explain differences between goroutines...",
		},
		{
			"truncated first line",
			strings.Repeat("x", 80),
			strings.Repeat("x", 47) + "...",
		},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTitle(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DeriveTitle(tt.input), "deterministic")
			assert.LessOrEqual(t, len([]rune(got)), 50)
		})
	}
}
