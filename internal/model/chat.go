// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat is a persisted conversation. Messages are kept in insertion order, which
// is authoritative even when timestamps disagree.
type Chat struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CurrentModel string    `json:"currentModel"`
	CreatedAt    int64     `json:"createdAt"`
	UpdatedAt    int64     `json:"updatedAt"`
	FolderID     string    `json:"folderId,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// FirstUserMessage returns the first message written by the user.
func (c *Chat) FirstUserMessage() (Message, bool) {
	for _, m := range c.Messages {
		if m.IsUser() {
			return m, true
		}
	}
	return Message{}, false
}

// HasTag reports whether the chat carries tag.
func (c *Chat) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Touch bumps UpdatedAt to now, never moving it backwards.
func (c *Chat) Touch(now int64) {
	if now > c.UpdatedAt {
		c.UpdatedAt = now
	}
}

// Updated returns UpdatedAt as a time.Time.
func (c *Chat) Updated() time.Time {
	return time.UnixMilli(c.UpdatedAt)
}

// Clone returns a deep copy of the chat.
func (c Chat) Clone() Chat {
	c.Messages = CloneMessages(c.Messages)
	if c.Tags != nil {
		c.Tags = append([]string(nil), c.Tags...)
	}
	return c
}

// =============================================================================
// FOLDER TYPE
// =============================================================================

// Folder groups chats. A chat belongs to at most one folder.
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// FolderPatch is a merge-patch for a folder; nil fields are left unchanged.
type FolderPatch struct {
	Name  *string
	Color *string
}

// =============================================================================
// CHAT LIST
// =============================================================================

// ChatList is the persisted root. A chat id appears in at most one of Chats and
// ArchivedChats, and CurrentChatID is either empty or the id of an active chat.
type ChatList struct {
	Chats         []Chat   `json:"chats"`
	ArchivedChats []Chat   `json:"archivedChats"`
	CurrentChatID string   `json:"currentChatId"`
	Folders       []Folder `json:"folders"`
}

// NewChatList returns the empty default structure.
func NewChatList() ChatList {
	return ChatList{
		Chats:         []Chat{},
		ArchivedChats: []Chat{},
		Folders:       []Folder{},
	}
}

// IndexActive returns the index of id in Chats, or -1.
func (l *ChatList) IndexActive(id string) int {
	return indexChat(l.Chats, id)
}

// IndexArchived returns the index of id in ArchivedChats, or -1.
func (l *ChatList) IndexArchived(id string) int {
	return indexChat(l.ArchivedChats, id)
}

// IndexFolder returns the index of the folder with id, or -1.
func (l *ChatList) IndexFolder(id string) int {
	for i := range l.Folders {
		if l.Folders[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a pointer to the chat with id, searching active chats first.
func (l *ChatList) Find(id string) *Chat {
	if i := l.IndexActive(id); i >= 0 {
		return &l.Chats[i]
	}
	if i := l.IndexArchived(id); i >= 0 {
		return &l.ArchivedChats[i]
	}
	return nil
}

// FirstActiveID returns the id of the first active chat, or "".
func (l *ChatList) FirstActiveID() string {
	if len(l.Chats) == 0 {
		return ""
	}
	return l.Chats[0].ID
}

// SortByUpdated orders chats newest first. The sort is stable so chats with the
// same UpdatedAt keep their relative order.
func SortByUpdated(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt > chats[j].UpdatedAt
	})
}

// RemoveChat returns chats without the entry for id.
func RemoveChat(chats []Chat, id string) []Chat {
	out := chats[:0]
	for _, c := range chats {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func indexChat(chats []Chat, id string) int {
	for i := range chats {
		if chats[i].ID == id {
			return i
		}
	}
	return -1
}
