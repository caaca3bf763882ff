// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/chatflow/internal/model"
)

// SchemaVersion is the version written with every chat list record.
// Version 0 is the unversioned layout that predates folders.
const SchemaVersion = 1

// record is the persisted shape of the chat list.
type record struct {
	Version       int            `json:"version"`
	Chats         []model.Chat   `json:"chats"`
	ArchivedChats []model.Chat   `json:"archivedChats"`
	CurrentChatID *string        `json:"currentChatId"`
	Folders       []model.Folder `json:"folders"`
}

// encodeChatList serializes list at the current schema version.
func encodeChatList(list model.ChatList) ([]byte, error) {
	rec := record{
		Version:       SchemaVersion,
		Chats:         nonNilChats(list.Chats),
		ArchivedChats: nonNilChats(list.ArchivedChats),
		Folders:       list.Folders,
	}
	if rec.Folders == nil {
		rec.Folders = []model.Folder{}
	}
	if list.CurrentChatID != "" {
		id := list.CurrentChatID
		rec.CurrentChatID = &id
	}
	return json.Marshal(rec)
}

// decodeChatList parses a stored record and upgrades it to the current
// version. Any error means the caller should fall back to the default.
func decodeChatList(data []byte) (model.ChatList, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.NewChatList(), err
	}
	if rec.Version > SchemaVersion {
		return model.NewChatList(), fmt.Errorf("unsupported chat list version %d", rec.Version)
	}
	return upgrade(rec), nil
}

// upgrade defaults missing fields and repairs structural damage: chats without
// an id are dropped, duplicate ids keep their first occurrence with active
// winning over archived, and folder references to missing folders are cleared.
func upgrade(rec record) model.ChatList {
	list := model.NewChatList()

	seenFolder := make(map[string]bool)
	for _, f := range rec.Folders {
		if f.ID == "" || seenFolder[f.ID] {
			continue
		}
		seenFolder[f.ID] = true
		list.Folders = append(list.Folders, f)
	}

	seenChat := make(map[string]bool)
	keep := func(chats []model.Chat) []model.Chat {
		out := []model.Chat{}
		for _, c := range chats {
			if c.ID == "" || seenChat[c.ID] {
				continue
			}
			seenChat[c.ID] = true
			if c.Messages == nil {
				c.Messages = []model.Message{}
			}
			if c.FolderID != "" && !seenFolder[c.FolderID] {
				c.FolderID = ""
			}
			out = append(out, c)
		}
		return out
	}
	list.Chats = keep(rec.Chats)
	list.ArchivedChats = keep(rec.ArchivedChats)

	if rec.CurrentChatID != nil {
		list.CurrentChatID = *rec.CurrentChatID
	}
	return list
}

func nonNilChats(chats []model.Chat) []model.Chat {
	if chats == nil {
		return []model.Chat{}
	}
	return chats
}

// legacyHistory is the single-conversation record written by older clients.
type legacyHistory struct {
	Messages     []model.Message `json:"messages"`
	CurrentModel string          `json:"currentModel"`
}
