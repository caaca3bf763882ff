// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"github.com/jeranaias/chatflow/internal/model"
)

// =============================================================================
// FOLDER OPERATIONS
// =============================================================================

// ListFolders returns all folders in creation order.
func (s *Store) ListFolders() []model.Folder {
	return s.GetChatList().Folders
}

// CreateFolder adds a folder and returns it.
func (s *Store) CreateFolder(name, color string) (model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Folder{}, ErrInvalidName
	}

	now := s.now()
	folder := model.Folder{
		ID:        model.NewFolderID(),
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.update(func(list *model.ChatList) error {
		list.Folders = append(list.Folders, folder)
		return nil
	})
	if err != nil {
		return model.Folder{}, err
	}
	return folder, nil
}

// UpdateFolder merges patch into the folder and bumps its updatedAt.
func (s *Store) UpdateFolder(id string, patch model.FolderPatch) (model.Folder, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return model.Folder{}, ErrInvalidName
	}

	var updated model.Folder
	err := s.update(func(list *model.ChatList) error {
		i := list.IndexFolder(id)
		if i < 0 {
			return ErrFolderNotFound
		}
		f := &list.Folders[i]
		if patch.Name != nil {
			f.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Color != nil {
			f.Color = *patch.Color
		}
		if now := s.now(); now > f.UpdatedAt {
			f.UpdatedAt = now
		}
		updated = *f
		return nil
	})
	return updated, err
}

// DeleteFolder removes the folder and clears folderId on every chat that
// referenced it, active or archived.
func (s *Store) DeleteFolder(id string) error {
	return s.update(func(list *model.ChatList) error {
		i := list.IndexFolder(id)
		if i < 0 {
			return ErrFolderNotFound
		}
		list.Folders = append(list.Folders[:i], list.Folders[i+1:]...)

		now := s.now()
		for _, chats := range [][]model.Chat{list.Chats, list.ArchivedChats} {
			for j := range chats {
				if chats[j].FolderID == id {
					chats[j].FolderID = ""
					chats[j].Touch(now)
				}
			}
		}
		return nil
	})
}

// MoveChatToFolder files a chat under folderID. An empty folderID removes the
// chat from its folder.
func (s *Store) MoveChatToFolder(chatID, folderID string) error {
	return s.update(func(list *model.ChatList) error {
		if folderID != "" && list.IndexFolder(folderID) < 0 {
			return ErrFolderNotFound
		}
		c := list.Find(chatID)
		if c == nil {
			return ErrChatNotFound
		}
		if c.FolderID == folderID {
			return errUnchanged
		}
		c.FolderID = folderID
		c.Touch(s.now())
		return nil
	})
}

// ChatsInFolder returns the active chats filed under folderID.
func (s *Store) ChatsInFolder(folderID string) []model.Chat {
	out := []model.Chat{}
	for _, c := range s.GetChatList().Chats {
		if c.FolderID == folderID {
			out = append(out, c)
		}
	}
	return out
}
