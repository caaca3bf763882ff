// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the chat list, folders, and the selected model.
//
// All chat state lives under a single root key as one versioned JSON record.
// Every mutation re-reads the whole record, modifies it, and writes it back,
// so the underlying key-value backend never sees partial updates.
//
// # Key Types
//
//   - KV: byte-oriented key-value backend (memory, file, SQLite, Pebble)
//   - Store: chat list repository built on a KV
//   - StoreError: sentinel-comparable error for missing chats and folders
//
// # Usage
//
// Open a store and save a chat:
//
//	store, err := storage.Open(storage.BackendFile, dir)
//	err = store.SaveChat(chat)
//
// Read it back:
//
//	list := store.GetChatList()
//	chat, err := store.GetChatByID(list.CurrentChatID)
//
// # Failure Model
//
// Reads never fail: missing or malformed records yield the empty default.
// Writes return the backend error to the caller without retrying.
package storage
