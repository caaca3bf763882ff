// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/chatflow/internal/model"
)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return opts
}

func sampleChat() model.Chat {
	return model.Chat{
		ID:           "chat-1",
		Title:        "Python basics",
		CurrentModel: "openai/gpt-4o",
		CreatedAt:    1740819600000,
		UpdatedAt:    1740819660000,
		Tags:         []string{"code"},
		Messages: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "Show me hello world <please>", Timestamp: 1740819600000},
			{ID: "m2", Role: model.RoleAssistant, Content: "Sure:\n\n```python\nprint(\"Hello\")\n```\nDone.", Timestamp: 1740819660000, Model: "openai/gpt-4o"},
		},
	}
}

// TestHTMLEscapesContent tests that message text and code language labels are escaped.
func TestHTMLEscapesContent(t *testing.T) {
	chat := sampleChat()
	chat.Messages = append(chat.Messages, model.Message{
		ID: "m3", Role: model.RoleAssistant,
		Content: "```<script>alert('xss')</script>\ncode here\n```",
	})

	output, err := NewHTMLExporter(testOptions()).Export(chat)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	result := string(output)
	if strings.Contains(result, "<please>") {
		t.Error("message text not escaped")
	}
	if !strings.Contains(result, "&lt;please&gt;") {
		t.Error("expected escaped message text")
	}
	if strings.Contains(result, "<script>alert") {
		t.Error("script tag not escaped")
	}
	if !strings.Contains(result, "Total Messages: 3") {
		t.Error("missing message count")
	}
	if !strings.Contains(result, "Model: openai/gpt-4o") {
		t.Error("missing model line")
	}
}

// TestHTMLHighlightsCode tests that fenced code is rendered by the highlighter.
func TestHTMLHighlightsCode(t *testing.T) {
	output, err := NewHTMLExporter(testOptions()).Export(sampleChat())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)

	if !strings.Contains(result, "<div class=\"code-lang\">python</div>") {
		t.Error("missing language label")
	}
	if !strings.Contains(result, "style=\"") {
		t.Error("expected inline-styled highlighted code")
	}
	if strings.Contains(result, "```") {
		t.Error("fence markers should be consumed")
	}
}

// TestEmptyChatRejected tests that document formats refuse empty chats.
func TestEmptyChatRejected(t *testing.T) {
	chat := model.Chat{ID: "empty", Title: "Empty"}

	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewHTMLExporter(nil)} {
		if _, err := exp.Export(chat); !errors.Is(err, ErrEmptyChat) {
			t.Errorf("%T: expected ErrEmptyChat, got %v", exp, err)
		}
	}
}

// TestMarkdownFrontmatter tests YAML metadata escaping.
func TestMarkdownFrontmatter(t *testing.T) {
	opts := testOptions()
	opts.Frontmatter = true
	chat := sampleChat()
	chat.Title = "Test\nInjection: malicious"

	output, err := NewMarkdownExporter(opts).Export(chat)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)

	if !strings.HasPrefix(result, "---\ntitle: \"Test\\nInjection: malicious\"\n") {
		t.Errorf("title not quoted in frontmatter:\n%s", result)
	}
	if !strings.Contains(result, "tags: [\"code\"]\n") {
		t.Error("missing tags")
	}
	if !strings.Contains(result, "date: 2025-03-01T09:00:00Z\n") {
		t.Error("missing created date")
	}
	if !strings.Contains(result, "## You (2025-03-01 09:00:00)") {
		t.Error("missing user heading")
	}
}

// TestJSONExport tests the exported record and its defaults.
func TestJSONExport(t *testing.T) {
	output, err := NewJSONExporter(testOptions()).Export(sampleChat())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(output, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc["id"] != "chat-1" || doc["title"] != "Python basics" {
		t.Errorf("unexpected identity: %v %v", doc["id"], doc["title"])
	}
	if doc["exportDate"] != "2025-03-01T09:00:00.000Z" {
		t.Errorf("exportDate = %v", doc["exportDate"])
	}
	if msgs, ok := doc["messages"].([]interface{}); !ok || len(msgs) != 2 {
		t.Errorf("messages = %v", doc["messages"])
	}

	unsaved := model.Chat{Messages: []model.Message{
		{ID: "a", Role: model.RoleUser, Content: "x", Timestamp: 100},
		{ID: "b", Role: model.RoleAssistant, Content: "y", Timestamp: 200},
	}}
	output, err = NewJSONExporter(testOptions()).Export(unsaved)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var got struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		CreatedAt int64  `json:"createdAt"`
		UpdatedAt int64  `json:"updatedAt"`
	}
	if err := json.Unmarshal(output, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.ID != "export-1740819600000" || got.Title != "Exported Chat" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.CreatedAt != 100 || got.UpdatedAt != 200 {
		t.Errorf("timestamps not derived from messages: %+v", got)
	}
}

// TestFilename tests slug generation.
func TestFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Test/Path\\Name:With*Special?Chars", "test-path-name-with-special-chars"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Ünïcödé Tïtlé", "unicode-title"},
		{"日本語", "chat-export"},
		{"", "chat-export"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		if got := Filename(tt.input); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestExportToFile tests that the file lands in the output directory.
func TestExportToFile(t *testing.T) {
	opts := testOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "exports")

	exporter, err := ForFormat("md", opts)
	if err != nil {
		t.Fatalf("ForFormat failed: %v", err)
	}
	path, err := ExportToFile(sampleChat(), exporter, opts)
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}

	if want := filepath.Join(opts.OutputDir, "python-basics_20250301_090000.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Python basics\n") {
		t.Errorf("unexpected content:\n%s", data)
	}

	if _, err := ForFormat("docx", opts); err == nil {
		t.Error("expected error for unknown format")
	}
}
