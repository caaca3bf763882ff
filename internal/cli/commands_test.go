// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/storage"
)

// resetFlags restores every flag variable to its default; cobra keeps values
// between Execute calls.
func resetFlags() {
	configPath, envFile, backendFlag, dataDirFlag, logLevel, logFile = "", "", "", "", "", ""
	noColor = false

	chatsArchived, chatsAll = false, false
	chatsSearch, chatsFolder, chatsTag = "", "", ""
	showRaw = false
	folderColor = ""
	modelsKey, modelsFree = "", false
	exportFormat, exportOut = "md", "."
	exportOpen, exportFrontmatter, exportStdout = false, false, false
	configInitForce = false
}

// cliEnv isolates HOME and returns a data directory for the file backend.
func cliEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{"CHATFLOW_STORAGE_BACKEND", "CHATFLOW_STORAGE_PATH", "CHATFLOW_BASE_URL", "CHATFLOW_MODEL"} {
		t.Setenv(name, "")
	}
	ForceColorsEnabled(false)
	return filepath.Join(home, "data")
}

// runCLI executes the root command with args against the file store in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--backend", "file", "--data-dir", dir, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	if err != nil {
		teardown()
	}
	return out.String(), err
}

// seedStore writes chats to the file store in dir.
func seedStore(t *testing.T, dir string, chats ...model.Chat) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0700))
	s, err := storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	for _, c := range chats {
		require.NoError(t, s.SaveChat(c))
	}
	require.NoError(t, s.Close())
}

// readStore returns the chat list persisted in dir.
func readStore(t *testing.T, dir string) model.ChatList {
	t.Helper()
	s, err := storage.Open(storage.BackendFile, dir)
	require.NoError(t, err)
	defer s.Close()
	return s.GetChatList()
}

func seedChats() []model.Chat {
	return []model.Chat{
		{
			ID:           "a1b2c3d4-1111",
			Title:        "Go generics",
			CurrentModel: "openai/gpt-4o",
			Messages: []model.Message{
				{ID: "m1", Role: model.RoleUser, Content: "How do type parameters work?", Timestamp: 1000},
				{ID: "m2", Role: model.RoleAssistant, Content: "They let functions take types.", Model: "openai/gpt-4o", Timestamp: 2000},
			},
			CreatedAt: 1000,
			UpdatedAt: 2000,
		},
		{
			ID:           "b5e6f7a8-2222",
			Title:        "Rust lifetimes",
			CurrentModel: "openai/gpt-4o",
			Messages: []model.Message{
				{ID: "m3", Role: model.RoleUser, Content: "Explain borrowing", Timestamp: 500},
			},
			CreatedAt: 500,
			UpdatedAt: 500,
		},
	}
}

// =============================================================================
// CHAT COMMANDS
// =============================================================================

func TestChatsCommand(t *testing.T) {
	dir := cliEnv(t)
	seedStore(t, dir, seedChats()...)

	out, err := runCLI(t, dir, "chats")
	require.NoError(t, err)
	assert.Contains(t, out, "Go generics")
	assert.Contains(t, out, "Rust lifetimes")

	out, err = runCLI(t, dir, "chats", "--search", "borrowing")
	require.NoError(t, err)
	assert.Contains(t, out, "Rust lifetimes")
	assert.NotContains(t, out, "Go generics")

	out, err = runCLI(t, dir, "chats", "--archived")
	require.NoError(t, err)
	assert.Contains(t, out, "No chats found.")
}

func TestShowCommand(t *testing.T) {
	dir := cliEnv(t)
	seedStore(t, dir, seedChats()...)

	out, err := runCLI(t, dir, "show", "a1b2", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "Go generics")
	assert.Contains(t, out, "a1b2c3d4-1111")
	assert.Contains(t, out, "How do type parameters work?")
	assert.Contains(t, out, "They let functions take types.")

	_, err = runCLI(t, dir, "show", "ffff")
	assert.ErrorIs(t, err, storage.ErrChatNotFound)
}

func TestRenameArchiveDelete(t *testing.T) {
	dir := cliEnv(t)
	seedStore(t, dir, seedChats()...)

	_, err := runCLI(t, dir, "rename", "a1b2", "Type", "parameters")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "archive", "b5e6")
	require.NoError(t, err)

	list := readStore(t, dir)
	require.Len(t, list.Chats, 1)
	assert.Equal(t, "Type parameters", list.Chats[0].Title)
	require.Len(t, list.ArchivedChats, 1)
	assert.Equal(t, "b5e6f7a8-2222", list.ArchivedChats[0].ID)

	out, err := runCLI(t, dir, "chats", "--archived")
	require.NoError(t, err)
	assert.Contains(t, out, "Rust lifetimes")

	_, err = runCLI(t, dir, "unarchive", "b5e6")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "delete", "a1b2")
	require.NoError(t, err)

	list = readStore(t, dir)
	require.Len(t, list.Chats, 1)
	assert.Equal(t, "b5e6f7a8-2222", list.Chats[0].ID)
	assert.Empty(t, list.ArchivedChats)
}

func TestFoldersTagsAndMove(t *testing.T) {
	dir := cliEnv(t)
	seedStore(t, dir, seedChats()...)

	_, err := runCLI(t, dir, "folders", "create", "Work", "--color", "#3B82F6")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "move", "a1b2", "work")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "tag", "add", "a1b2", "go")
	require.NoError(t, err)

	list := readStore(t, dir)
	require.Len(t, list.Folders, 1)
	assert.Equal(t, "#3B82F6", list.Folders[0].Color)
	chat := list.Find("a1b2c3d4-1111")
	require.NotNil(t, chat)
	assert.Equal(t, list.Folders[0].ID, chat.FolderID)
	assert.Equal(t, []string{"go"}, chat.Tags)

	out, err := runCLI(t, dir, "chats", "--folder", "Work", "--tag", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "Go generics")
	assert.NotContains(t, out, "Rust lifetimes")

	out, err = runCLI(t, dir, "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "Work")

	out, err = runCLI(t, dir, "tag", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "go")

	// Deleting the folder keeps its chats
	_, err = runCLI(t, dir, "folders", "delete", "Work")
	require.NoError(t, err)
	list = readStore(t, dir)
	assert.Empty(t, list.Folders)
	require.Len(t, list.Chats, 2)
	assert.Empty(t, list.Find("a1b2c3d4-1111").FolderID)

	_, err = runCLI(t, dir, "move", "a1b2", "Nowhere")
	assert.ErrorIs(t, err, storage.ErrFolderNotFound)
}

func TestExportCommand(t *testing.T) {
	dir := cliEnv(t)
	seedStore(t, dir, seedChats()...)

	out, err := runCLI(t, dir, "export", "a1b2", "--format", "json", "--stdout")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "exportDate")
	assert.Equal(t, "Go generics", doc["title"])

	outDir := t.TempDir()
	out, err = runCLI(t, dir, "export", "a1b2", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")
	matches, err := filepath.Glob(filepath.Join(outDir, "go-generics_*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = runCLI(t, dir, "export", "a1b2", "--format", "docx", "--stdout")
	assert.ErrorContains(t, err, "unknown export format")
}

// =============================================================================
// CONFIG AND VERSION
// =============================================================================

func TestConfigSetGet(t *testing.T) {
	dir := cliEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, dir, "--config", path, "config", "set", "ui.theme", "light")
	require.NoError(t, err)
	assert.Contains(t, out, "ui.theme = light")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `theme = "light"`)

	out, err = runCLI(t, dir, "--config", path, "config", "get", "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	_, err = runCLI(t, dir, "--config", path, "config", "set", "ui.theme", "neon")
	assert.Error(t, err)

	out, err = runCLI(t, dir, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigShowHidesKeys(t *testing.T) {
	dir := cliEnv(t)
	t.Setenv("VITE_API_KEY_1_NAME", "Primary")
	t.Setenv("VITE_API_KEY_1", "sk-or-v1-secretsecretsecret")

	out, err := runCLI(t, dir, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[keys]")
	assert.Contains(t, out, "Primary")
	assert.NotContains(t, out, "secretsecretsecret")
}

func TestVersionCommand(t *testing.T) {
	dir := cliEnv(t)
	out, err := runCLI(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chatflow "+Version)
	assert.Contains(t, out, "go:")
}

// =============================================================================
// MODELS
// =============================================================================

func modelsServer(t *testing.T, goodKey string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid API key","code":401}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"openai/gpt-4o","name":"GPT-4o","pricing":{"prompt":"0.0000025","completion":"0.00001"}},
			{"id":"meta/llama-free","name":"Llama Free","pricing":{"prompt":"0","completion":"0"}},
			{"id":"other/model","name":"Other"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestModelsCommand(t *testing.T) {
	dir := cliEnv(t)
	srv := modelsServer(t, "sk-good-0123456789")
	t.Setenv("CHATFLOW_BASE_URL", srv.URL)
	t.Setenv("VITE_API_KEY_1_NAME", "Broken")
	t.Setenv("VITE_API_KEY_1", "sk-bad-0123456789")
	t.Setenv("VITE_API_KEY_2_NAME", "Working")
	t.Setenv("VITE_API_KEY_2", "sk-good-0123456789")
	t.Setenv("VITE_MODEL_1", "openai/gpt-4o")
	t.Setenv("VITE_MODEL_2", "meta/llama-free")
	t.Setenv("VITE_MODEL_3", "gone/model")

	out, err := runCLI(t, dir, "models")
	require.NoError(t, err, "one working key is enough")
	assert.Contains(t, out, "Broken")
	assert.Contains(t, out, "[FAIL]")
	assert.Contains(t, out, "openai/gpt-4o")
	assert.NotContains(t, out, "other/model", "the allow-list filters the catalog")
	assert.Contains(t, out, "not in catalog: gone/model")

	out, err = runCLI(t, dir, "models", "--key", "working", "--free")
	require.NoError(t, err)
	assert.Contains(t, out, "meta/llama-free")
	assert.NotContains(t, out, "openai/gpt-4o")
	assert.NotContains(t, out, "Broken")

	_, err = runCLI(t, dir, "models", "--key", "broken")
	assert.Error(t, err)
}

func TestModelsCommandNoKeys(t *testing.T) {
	dir := cliEnv(t)
	_, err := runCLI(t, dir, "models")
	assert.Error(t, err)
}

// TestRootRequiresTTYForChat checks that interactive commands refuse to run
// when stdin is not a terminal, as under go test.
func TestRootRequiresTTYForChat(t *testing.T) {
	dir := cliEnv(t)
	_, err := runCLI(t, dir, "chat")
	assert.ErrorIs(t, err, ErrNotInteractive)

	_, err = runCLI(t, dir, "browse")
	assert.ErrorIs(t, err, ErrNotInteractive)
}

func TestUnknownCommand(t *testing.T) {
	dir := cliEnv(t)
	_, err := runCLI(t, dir, "frobnicate")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown command"))
}
