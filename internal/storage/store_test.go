// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatflow/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

type clock struct{ t int64 }

func (c *clock) now() int64 {
	c.t++
	return c.t
}

func newTestStore(t *testing.T) (*Store, *MemoryKV, *clock) {
	t.Helper()
	kv := NewMemoryKV()
	clk := &clock{t: 1000}
	return NewStore(kv).WithClock(clk.now), kv, clk
}

func testChat(id string, updated int64) model.Chat {
	return model.Chat{
		ID:           id,
		Title:        "chat " + id,
		CurrentModel: "openai/gpt-4o",
		CreatedAt:    updated,
		UpdatedAt:    updated,
		Messages: []model.Message{
			{ID: id + "-1", Role: model.RoleUser, Content: "hello " + id, Timestamp: updated},
		},
	}
}

func ids(chats []model.Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

// =============================================================================
// READ TESTS
// =============================================================================

func TestGetChatList_Empty(t *testing.T) {
	store, _, _ := newTestStore(t)

	list := store.GetChatList()
	assert.NotNil(t, list.Chats)
	assert.NotNil(t, list.ArchivedChats)
	assert.NotNil(t, list.Folders)
	assert.Empty(t, list.CurrentChatID)
}

func TestGetChatList_CorruptDataYieldsDefault(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"wrong type", `{"chats": "nope"}`},
		{"future version", `{"version": 99, "chats": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, kv, _ := newTestStore(t)
			require.NoError(t, kv.Set(ChatListKey, []byte(tt.data)))

			list := store.GetChatList()
			assert.Empty(t, list.Chats)
			assert.Empty(t, list.ArchivedChats)
			assert.Empty(t, list.CurrentChatID)
		})
	}
}

func TestGetChatList_UpgradesUnversionedRecord(t *testing.T) {
	store, kv, _ := newTestStore(t)
	raw := `{"chats":[{"id":"a","title":"A","messages":null,"currentModel":"m","createdAt":1,"updatedAt":1,"folderId":"gone"}],"currentChatId":null}`
	require.NoError(t, kv.Set(ChatListKey, []byte(raw)))

	list := store.GetChatList()
	require.Len(t, list.Chats, 1)
	assert.NotNil(t, list.Chats[0].Messages)
	assert.Empty(t, list.Chats[0].FolderID, "dangling folder reference should be cleared")
	assert.NotNil(t, list.ArchivedChats)
	assert.NotNil(t, list.Folders)
	assert.Empty(t, list.CurrentChatID)
}

func TestGetChatList_RepairsOverlap(t *testing.T) {
	store, kv, _ := newTestStore(t)
	raw := `{"version":1,"chats":[{"id":"a"}],"archivedChats":[{"id":"a"},{"id":"b"}],"currentChatId":"a","folders":[]}`
	require.NoError(t, kv.Set(ChatListKey, []byte(raw)))

	list := store.GetChatList()
	assert.Equal(t, []string{"a"}, ids(list.Chats))
	assert.Equal(t, []string{"b"}, ids(list.ArchivedChats))
}

func TestSaveChatList_NullCurrentChatID(t *testing.T) {
	store, kv, _ := newTestStore(t)
	require.NoError(t, store.SaveChatList(model.NewChatList()))

	data, _, err := kv.Get(ChatListKey)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"currentChatId":null`)
	assert.Contains(t, string(data), `"version":1`)
}

// =============================================================================
// CHAT OPERATION TESTS
// =============================================================================

func TestSaveChat_InsertSortsAndSetsCurrent(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, store.SaveChat(testChat("old", 10)))
	require.NoError(t, store.SaveChat(testChat("new", 20)))

	list := store.GetChatList()
	assert.Equal(t, []string{"new", "old"}, ids(list.Chats))
	assert.Equal(t, "new", list.CurrentChatID)
}

func TestSaveChat_UpdateInPlaceKeepsPosition(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))

	updated := testChat("a", 30)
	updated.Title = "renamed"
	require.NoError(t, store.SaveChat(updated))

	list := store.GetChatList()
	assert.Equal(t, []string{"b", "a"}, ids(list.Chats))
	assert.Equal(t, "renamed", list.Chats[1].Title)
	assert.Equal(t, "a", list.CurrentChatID)
}

func TestSaveChat_RemovesArchivedCopy(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.ArchiveChat("a"))

	require.NoError(t, store.SaveChat(testChat("a", 20)))

	list := store.GetChatList()
	assert.Equal(t, []string{"a"}, ids(list.Chats))
	assert.Empty(t, list.ArchivedChats)
}

func TestDeleteChat_RepointsCurrent(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))

	require.NoError(t, store.DeleteChat("b"))
	assert.Equal(t, "a", store.GetChatList().CurrentChatID)

	require.NoError(t, store.DeleteChat("a"))
	assert.Empty(t, store.GetChatList().CurrentChatID)
}

func TestDeleteChat_RemovesArchived(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.ArchiveChat("a"))

	require.NoError(t, store.DeleteChat("a"))
	assert.Empty(t, store.GetChatList().ArchivedChats)

	err := store.DeleteChat("a")
	assert.True(t, errors.Is(err, ErrChatNotFound))
}

func TestArchiveChat(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))
	require.NoError(t, store.SaveChat(testChat("c", 30)))

	require.NoError(t, store.ArchiveChat("a"))
	require.NoError(t, store.ArchiveChat("c"))

	list := store.GetChatList()
	assert.Equal(t, []string{"b"}, ids(list.Chats))
	assert.Equal(t, []string{"c", "a"}, ids(list.ArchivedChats))
	assert.Equal(t, "b", list.CurrentChatID, "current chat archived, repointed to first active")
}

func TestArchiveChat_ReArchiveIsNoOpButRepoints(t *testing.T) {
	store, kv, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))
	require.NoError(t, store.ArchiveChat("a"))

	// Simulate a stale pointer written by another process
	list := store.GetChatList()
	list.CurrentChatID = "a"
	data, err := encodeChatList(list)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ChatListKey, data))

	require.NoError(t, store.ArchiveChat("a"))

	list = store.GetChatList()
	assert.Equal(t, []string{"a"}, ids(list.ArchivedChats))
	assert.Equal(t, "b", list.CurrentChatID)
}

func TestArchiveAndActiveStayDisjoint(t *testing.T) {
	store, _, _ := newTestStore(t)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.SaveChat(testChat(id, int64(10*(i+1)))))
	}

	ops := []func() error{
		func() error { return store.ArchiveChat("a") },
		func() error { return store.ArchiveChat("a") },
		func() error { return store.UnarchiveChat("a") },
		func() error { return store.ArchiveChat("b") },
		func() error { return store.SaveChat(testChat("b", 99)) },
		func() error { return store.ArchiveChat("c") },
		func() error { return store.DeleteChat("d") },
	}
	for _, op := range ops {
		require.NoError(t, op())
		list := store.GetChatList()
		active := make(map[string]bool)
		for _, c := range list.Chats {
			active[c.ID] = true
		}
		for _, c := range list.ArchivedChats {
			assert.False(t, active[c.ID], "chat %s in both lists", c.ID)
		}
		if list.CurrentChatID != "" {
			assert.True(t, active[list.CurrentChatID], "current chat %s not active", list.CurrentChatID)
		}
	}
}

func TestUnarchiveChat(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.ArchiveChat("a"))

	require.NoError(t, store.UnarchiveChat("a"))
	list := store.GetChatList()
	assert.Equal(t, []string{"a"}, ids(list.Chats))
	assert.Empty(t, list.ArchivedChats)

	assert.NoError(t, store.UnarchiveChat("a"), "already active is a no-op")
	assert.ErrorIs(t, store.UnarchiveChat("zzz"), ErrChatNotFound)
}

func TestRenameChat(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))
	require.NoError(t, store.ArchiveChat("b"))

	require.NoError(t, store.RenameChat("a", "Active title"))
	require.NoError(t, store.RenameChat("b", "Archived title"))

	a, err := store.GetChatByID("a")
	require.NoError(t, err)
	assert.Equal(t, "Active title", a.Title)
	assert.Greater(t, a.UpdatedAt, int64(10))

	b, err := store.GetChatByID("b")
	require.NoError(t, err)
	assert.Equal(t, "Archived title", b.Title)

	assert.ErrorIs(t, store.RenameChat("missing", "x"), ErrChatNotFound)
}

func TestGetChatByID_NotFound(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.GetChatByID("nope")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSetChatModel(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))

	require.NoError(t, store.SetChatModel("a", "anthropic/claude-3.5-sonnet"))
	a, err := store.GetChatByID("a")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", a.CurrentModel)
	assert.Greater(t, a.UpdatedAt, int64(10))
}

func TestSetCurrentChatID(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.SaveChat(testChat("a", 10)))
	require.NoError(t, store.SaveChat(testChat("b", 20)))
	require.NoError(t, store.ArchiveChat("a"))

	require.NoError(t, store.SetCurrentChatID(""))
	assert.Empty(t, store.GetChatList().CurrentChatID)

	require.NoError(t, store.SetCurrentChatID("b"))
	assert.Equal(t, "b", store.GetChatList().CurrentChatID)

	require.NoError(t, store.SetCurrentChatID("a"))
	assert.Empty(t, store.GetChatList().CurrentChatID, "archived chat cannot be current")
}

func TestSearchChats(t *testing.T) {
	store, _, _ := newTestStore(t)
	c := testChat("a", 10)
	c.Title = "Go generics"
	require.NoError(t, store.SaveChat(c))
	require.NoError(t, store.SaveChat(testChat("b", 20)))
	require.NoError(t, store.ArchiveChat("b"))

	assert.Equal(t, []string{"a"}, ids(store.SearchChats("GENERICS", false)))
	assert.Empty(t, store.SearchChats("hello b", false))
	assert.Equal(t, []string{"b"}, ids(store.SearchChats("hello b", true)))
	assert.Len(t, store.SearchChats("", true), 2)
}

func TestWriteErrorIsReturned(t *testing.T) {
	store := NewStore(failingKV{})
	err := store.SaveChat(testChat("a", 1))
	assert.Error(t, err)

	// Reads still succeed with defaults
	assert.Empty(t, store.GetChatList().Chats)
}

type failingKV struct{}

func (failingKV) Get(string) ([]byte, bool, error) { return nil, false, errors.New("unavailable") }
func (failingKV) Set(string, []byte) error         { return errors.New("quota exceeded") }
func (failingKV) Delete(string) error              { return errors.New("unavailable") }

// =============================================================================
// SELECTED MODEL AND LEGACY TESTS
// =============================================================================

func TestSelectedModel(t *testing.T) {
	store, _, _ := newTestStore(t)
	assert.Empty(t, store.LoadSelectedModel())

	require.NoError(t, store.SaveSelectedModel("openai/gpt-4o"))
	assert.Equal(t, "openai/gpt-4o", store.LoadSelectedModel())
}

func TestImportLegacy(t *testing.T) {
	store, kv, _ := newTestStore(t)
	raw := `{"messages":[{"id":"1","role":"user","content":"What is Go?","timestamp":500},{"id":"2","role":"assistant","content":"A language.","timestamp":600}],"currentModel":"openai/gpt-4o"}`
	require.NoError(t, kv.Set(LegacyHistoryKey, []byte(raw)))

	imported, err := store.ImportLegacy(func(s string) string { return "T:" + s })
	require.NoError(t, err)
	assert.True(t, imported)

	list := store.GetChatList()
	require.Len(t, list.Chats, 1)
	chat := list.Chats[0]
	assert.Equal(t, "T:What is Go?", chat.Title)
	assert.Equal(t, "openai/gpt-4o", chat.CurrentModel)
	assert.Len(t, chat.Messages, 2)
	assert.Equal(t, int64(500), chat.CreatedAt)
	assert.Equal(t, chat.ID, list.CurrentChatID)

	_, ok, _ := kv.Get(LegacyHistoryKey)
	assert.False(t, ok, "legacy record removed after import")

	imported, err = store.ImportLegacy(func(s string) string { return s })
	require.NoError(t, err)
	assert.False(t, imported, "import happens once")
}

func TestImportLegacy_DiscardsUnusable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"corrupt", "not json"},
		{"no user message", `{"messages":[],"currentModel":"m"}`},
		{"no model", `{"messages":[{"id":"1","role":"user","content":"hi","timestamp":1}],"currentModel":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, kv, _ := newTestStore(t)
			require.NoError(t, kv.Set(LegacyHistoryKey, []byte(tt.raw)))

			imported, err := store.ImportLegacy(func(s string) string { return s })
			require.NoError(t, err)
			assert.False(t, imported)
			assert.Empty(t, store.GetChatList().Chats)

			_, ok, _ := kv.Get(LegacyHistoryKey)
			assert.False(t, ok)
		})
	}
}
