// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"github.com/jeranaias/chatflow/internal/model"
)

// AddTagToChat tags a chat. Adding a tag the chat already has is a no-op.
func (s *Store) AddTagToChat(chatID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrInvalidName
	}
	return s.modifyChat(chatID, func(c *model.Chat) bool {
		if c.HasTag(tag) {
			return false
		}
		c.Tags = append(c.Tags, tag)
		return true
	})
}

// RemoveTagFromChat untags a chat. Removing an absent tag is a no-op.
func (s *Store) RemoveTagFromChat(chatID, tag string) error {
	tag = strings.TrimSpace(tag)
	return s.modifyChat(chatID, func(c *model.Chat) bool {
		if !c.HasTag(tag) {
			return false
		}
		kept := c.Tags[:0]
		for _, t := range c.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		c.Tags = kept
		if len(c.Tags) == 0 {
			c.Tags = nil
		}
		return true
	})
}

// AllTags returns the distinct tags used across active and archived chats.
func (s *Store) AllTags() []string {
	list := s.GetChatList()
	seen := make(map[string]bool)
	var tags []string
	for _, chats := range [][]model.Chat{list.Chats, list.ArchivedChats} {
		for _, c := range chats {
			for _, t := range c.Tags {
				if !seen[t] {
					seen[t] = true
					tags = append(tags, t)
				}
			}
		}
	}
	return tags
}
