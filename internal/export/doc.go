// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders chats for use outside chatflow.
//
// # Supported Formats
//
//   - Markdown: headings per turn, optional YAML frontmatter
//   - JSON: the chat record plus an exportDate
//   - HTML: a printable document with highlighted code blocks
//
// Transcript produces the plain-text form used for sharing.
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(chat, exporter, nil)
package export
