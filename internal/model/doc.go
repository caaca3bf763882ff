// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats, messages and folders.
//
// These types are the persisted shape of the chat list, so their JSON field
// names are part of the storage format and must stay stable.
//
// # Key Types
//
//   - Message: a single user or assistant turn, with optional feedback
//   - Chat: an ordered list of messages with title, model, folder and tags
//   - Folder: a named grouping that chats can reference
//   - ChatList: the persisted root holding active and archived chats
//   - ModelInfo: an upstream catalog entry (id, name, pricing)
//
// # Usage
//
//	msg := model.NewUserMessage("Hello")
//	chat := model.Chat{ID: model.NewChatID(), Messages: []model.Message{msg}}
package model
