// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/storage"
	"github.com/jeranaias/chatflow/internal/viewstate"
)

// resolveChatID expands a full id or a unique id prefix, searching active
// and archived chats. A chat location ("?chat=<id>") is also accepted.
func resolveChatID(list model.ChatList, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if id := chatIDFromArg(arg); id != "" {
		arg = id
	}
	if arg == "" {
		return "", fmt.Errorf("chat id required")
	}
	if list.Find(arg) != nil {
		return arg, nil
	}

	var matches []string
	for _, group := range [][]model.Chat{list.Chats, list.ArchivedChats} {
		for _, c := range group {
			if strings.HasPrefix(c.ID, arg) {
				matches = append(matches, c.ID)
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrChatNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("chat id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// chatIDFromArg extracts the id from a share location, or returns "".
func chatIDFromArg(arg string) string {
	if !strings.Contains(arg, viewstate.ChatParam+"=") {
		return ""
	}
	return viewstate.ChatIDFrom(arg)
}

// resolveFolderID matches a folder by id, id prefix or case-insensitive name.
func resolveFolderID(list model.ChatList, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("folder required")
	}

	var matches []string
	for _, f := range list.Folders {
		switch {
		case f.ID == arg:
			return f.ID, nil
		case strings.EqualFold(f.Name, arg), strings.HasPrefix(f.ID, arg):
			matches = append(matches, f.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrFolderNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("folder %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// folderName returns the display name of folder id, or "".
func folderName(list model.ChatList, id string) string {
	if i := list.IndexFolder(id); i >= 0 {
		return list.Folders[i].Name
	}
	return ""
}
