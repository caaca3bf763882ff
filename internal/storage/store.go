// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/chatflow/internal/model"
)

// errUnchanged short-circuits an update that would not modify the record.
var errUnchanged = errors.New("unchanged")

// =============================================================================
// STORE
// =============================================================================

// Store is the chat list repository. Mutations are serialized within the
// process; concurrent writers in other processes are last-write-wins.
type Store struct {
	kv     KV
	mu     sync.Mutex
	logger *slog.Logger
	now    func() int64
}

// NewStore creates a store on top of kv.
func NewStore(kv KV) *Store {
	return &Store{
		kv:     kv,
		logger: slog.Default(),
		now:    model.NowMillis,
	}
}

// WithLogger sets the logger for corruption diagnostics.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock replaces the millisecond clock used for updatedAt bumps.
func (s *Store) WithClock(now func() int64) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Close releases the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Watch calls fn whenever the chat list key changes in the backend, until ctx
// is done. It returns ErrWatchUnsupported for backends that cannot observe
// changes.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	w, ok := s.kv.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func(key string) {
		if key == ChatListKey {
			fn()
		}
	})
}

// =============================================================================
// READ/WRITE PRIMITIVES
// =============================================================================

// GetChatList returns the persisted chat list, or the empty default when
// nothing is stored or the stored record is unreadable.
func (s *Store) GetChatList() model.ChatList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SaveChatList overwrites the persisted chat list.
func (s *Store) SaveChatList(list model.ChatList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(list)
}

func (s *Store) load() model.ChatList {
	data, ok, err := s.kv.Get(ChatListKey)
	if err != nil {
		s.logger.Debug("chat list read failed, using defaults", "error", err)
		return model.NewChatList()
	}
	if !ok {
		return model.NewChatList()
	}
	list, err := decodeChatList(data)
	if err != nil {
		s.logger.Debug("chat list unreadable, using defaults", "error", err)
		return model.NewChatList()
	}
	return list
}

func (s *Store) save(list model.ChatList) error {
	data, err := encodeChatList(list)
	if err != nil {
		return err
	}
	return s.kv.Set(ChatListKey, data)
}

// update runs a read-modify-write cycle. fn returning errUnchanged skips the
// write and reports success.
func (s *Store) update(fn func(list *model.ChatList) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.load()
	if err := fn(&list); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	return s.save(list)
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// GetChatByID returns the chat with id, searching active chats first.
func (s *Store) GetChatByID(id string) (model.Chat, error) {
	list := s.GetChatList()
	if c := list.Find(id); c != nil {
		return c.Clone(), nil
	}
	return model.Chat{}, ErrChatNotFound
}

// SaveChat upserts chat into the active list and makes it current. An
// archived copy with the same id is removed.
func (s *Store) SaveChat(chat model.Chat) error {
	chat = chat.Clone()
	return s.update(func(list *model.ChatList) error {
		list.ArchivedChats = model.RemoveChat(list.ArchivedChats, chat.ID)
		if i := list.IndexActive(chat.ID); i >= 0 {
			list.Chats[i] = chat
		} else {
			list.Chats = append(list.Chats, chat)
			model.SortByUpdated(list.Chats)
		}
		list.CurrentChatID = chat.ID
		return nil
	})
}

// DeleteChat removes the chat from both lists. If it was current, the first
// remaining active chat becomes current.
func (s *Store) DeleteChat(id string) error {
	return s.update(func(list *model.ChatList) error {
		if list.Find(id) == nil {
			return ErrChatNotFound
		}
		list.Chats = model.RemoveChat(list.Chats, id)
		list.ArchivedChats = model.RemoveChat(list.ArchivedChats, id)
		if list.CurrentChatID == id {
			list.CurrentChatID = list.FirstActiveID()
		}
		return nil
	})
}

// ArchiveChat moves an active chat to the archive. Archiving an already
// archived chat leaves the lists alone but still repoints currentChatId.
func (s *Store) ArchiveChat(id string) error {
	return s.update(func(list *model.ChatList) error {
		i := list.IndexActive(id)
		if i < 0 && list.IndexArchived(id) < 0 {
			return ErrChatNotFound
		}
		if i >= 0 {
			chat := list.Chats[i]
			list.Chats = model.RemoveChat(list.Chats, id)
			if list.IndexArchived(id) < 0 {
				list.ArchivedChats = append(list.ArchivedChats, chat)
			}
		}
		model.SortByUpdated(list.ArchivedChats)
		if list.CurrentChatID == id {
			list.CurrentChatID = list.FirstActiveID()
		}
		return nil
	})
}

// UnarchiveChat moves an archived chat back to the active list without
// making it current.
func (s *Store) UnarchiveChat(id string) error {
	return s.update(func(list *model.ChatList) error {
		i := list.IndexArchived(id)
		if i < 0 {
			if list.IndexActive(id) >= 0 {
				return errUnchanged
			}
			return ErrChatNotFound
		}
		chat := list.ArchivedChats[i]
		list.ArchivedChats = model.RemoveChat(list.ArchivedChats, id)
		list.Chats = append(list.Chats, chat)
		model.SortByUpdated(list.Chats)
		return nil
	})
}

// RenameChat sets the title and bumps updatedAt wherever the chat lives.
func (s *Store) RenameChat(id, title string) error {
	return s.modifyChat(id, func(c *model.Chat) bool {
		c.Title = title
		return true
	})
}

// SetChatModel records the model a chat continues with.
func (s *Store) SetChatModel(id, modelID string) error {
	return s.modifyChat(id, func(c *model.Chat) bool {
		if c.CurrentModel == modelID {
			return false
		}
		c.CurrentModel = modelID
		return true
	})
}

// SetCurrentChatID sets the active-chat pointer. An empty id, or an id that
// is not an active chat, clears it.
func (s *Store) SetCurrentChatID(id string) error {
	return s.update(func(list *model.ChatList) error {
		if id != "" && list.IndexActive(id) < 0 {
			id = ""
		}
		if list.CurrentChatID == id {
			return errUnchanged
		}
		list.CurrentChatID = id
		return nil
	})
}

// SearchChats returns chats whose title or message content contains query,
// case-insensitively, most recently updated first.
func (s *Store) SearchChats(query string, includeArchived bool) []model.Chat {
	list := s.GetChatList()
	candidates := list.Chats
	if includeArchived {
		candidates = append(candidates, list.ArchivedChats...)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	results := []model.Chat{}
	for _, c := range candidates {
		if query == "" || chatMatches(c, query) {
			results = append(results, c)
		}
	}
	model.SortByUpdated(results)
	return results
}

func chatMatches(c model.Chat, query string) bool {
	if strings.Contains(strings.ToLower(c.Title), query) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), query) {
			return true
		}
	}
	return false
}

// modifyChat applies fn to the chat in whichever list holds it and bumps
// updatedAt when fn reports a change.
func (s *Store) modifyChat(id string, fn func(c *model.Chat) bool) error {
	return s.update(func(list *model.ChatList) error {
		c := list.Find(id)
		if c == nil {
			return ErrChatNotFound
		}
		if !fn(c) {
			return errUnchanged
		}
		c.Touch(s.now())
		return nil
	})
}

// =============================================================================
// SELECTED MODEL
// =============================================================================

// LoadSelectedModel returns the last model the user picked, or "".
func (s *Store) LoadSelectedModel() string {
	data, ok, err := s.kv.Get(SelectedModelKey)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveSelectedModel records the model the user picked.
func (s *Store) SaveSelectedModel(modelID string) error {
	return s.kv.Set(SelectedModelKey, []byte(modelID))
}

// =============================================================================
// LEGACY IMPORT
// =============================================================================

// ImportLegacy converts the single-conversation record written by older
// clients into a chat, then removes it. title derives the chat title from the
// first user message. It reports whether a chat was created.
func (s *Store) ImportLegacy(title func(string) string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(LegacyHistoryKey)
	if err != nil || !ok {
		return false, err
	}

	var legacy legacyHistory
	if err := json.Unmarshal(data, &legacy); err != nil {
		s.logger.Debug("legacy history unreadable, discarding", "error", err)
		return false, s.kv.Delete(LegacyHistoryKey)
	}

	chat := model.Chat{
		ID:           model.NewChatID(),
		Messages:     legacy.Messages,
		CurrentModel: legacy.CurrentModel,
	}
	first, hasUser := chat.FirstUserMessage()
	if !hasUser || legacy.CurrentModel == "" {
		return false, s.kv.Delete(LegacyHistoryKey)
	}
	chat.Title = title(first.Content)
	chat.CreatedAt = first.Timestamp
	chat.UpdatedAt = s.now()
	if chat.CreatedAt == 0 || chat.CreatedAt > chat.UpdatedAt {
		chat.CreatedAt = chat.UpdatedAt
	}

	list := s.load()
	list.Chats = append(list.Chats, chat)
	model.SortByUpdated(list.Chats)
	if list.CurrentChatID == "" {
		list.CurrentChatID = chat.ID
	}
	if err := s.save(list); err != nil {
		return false, err
	}
	s.logger.Info("imported legacy conversation", "chat", chat.ID, "messages", len(chat.Messages))
	return true, s.kv.Delete(LegacyHistoryKey)
}
