// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/chatflow/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports chats to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a chat to Markdown.
func (e *MarkdownExporter) Export(chat model.Chat) ([]byte, error) {
	if len(chat.Messages) == 0 {
		return nil, ErrEmptyChat
	}

	var sb strings.Builder
	now := e.options.now()

	if e.options.Frontmatter {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(chat.Title)))
		sb.WriteString(fmt.Sprintf("model: %s\n", escapeYAML(chat.CurrentModel)))
		if chat.CreatedAt > 0 {
			sb.WriteString(fmt.Sprintf("date: %s\n", e.options.messageTime(chat.CreatedAt).Format(time.RFC3339)))
		}
		if len(chat.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("tags: [%s]\n", strings.Join(quoteAll(chat.Tags), ", ")))
		}
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(chat.Messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", now.Format(time.RFC3339)))
		sb.WriteString("---\n\n")
	}

	if chat.Title != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", chat.Title))
	}
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", formatTimestamp(now)))
	sb.WriteString("---\n\n")

	for _, msg := range chat.Messages {
		sb.WriteString(fmt.Sprintf("## %s (%s)\n\n", roleLabel(msg.Role), formatTimestamp(e.options.messageTime(msg.Timestamp))))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
		if msg.Model != "" {
			sb.WriteString(fmt.Sprintf("*Model: %s*\n\n", msg.Model))
		}
		sb.WriteString("---\n\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*,\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		return quoteYAML(s)
	}
	return s
}

func quoteYAML(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return `"` + s + `"`
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quoteYAML(s)
	}
	return out
}
