// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/chatflow/internal/model"
)

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// JSONExporter exports the chat record plus the export time. A chat that was
// never saved gets a synthetic id, a default title and timestamps taken from
// its first and last messages.
type JSONExporter struct {
	options *Options
}

type jsonDocument struct {
	model.Chat
	ExportDate string `json:"exportDate"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a chat to indented JSON.
func (e *JSONExporter) Export(chat model.Chat) ([]byte, error) {
	now := e.options.now()
	doc := jsonDocument{Chat: chat.Clone(), ExportDate: now.UTC().Format(isoMillis)}

	if doc.ID == "" {
		doc.ID = fmt.Sprintf("export-%d", now.UnixMilli())
	}
	if doc.Title == "" {
		doc.Title = "Exported Chat"
	}
	if doc.Messages == nil {
		doc.Messages = []model.Message{}
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = now.UnixMilli()
		if len(doc.Messages) > 0 {
			doc.CreatedAt = doc.Messages[0].Timestamp
		}
	}
	if doc.UpdatedAt == 0 {
		doc.UpdatedAt = now.UnixMilli()
		if len(doc.Messages) > 0 {
			doc.UpdatedAt = doc.Messages[len(doc.Messages)-1].Timestamp
		}
	}

	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
