// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across chatflow packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - RuneLen: character count for UTF-8 strings
//   - CollapseWhitespace: squeeze runs of whitespace into single spaces
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	display := util.TruncateRunes(longTitle, 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
