// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/storage"
	"github.com/jeranaias/chatflow/internal/viewstate"
)

var browseKey string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse saved chats interactively",
	Long: `Browse saved chats in a full-screen list.

Keys:
  enter   open the chat
  /       filter
  tab     switch between active and archived chats
  a       archive or restore the selected chat
  x x     delete the selected chat
  q       quit`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVarP(&browseKey, "key", "k", "", "API key name for the opened chat")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if err := requireTTY(); err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(newBrowseModel(s), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	chosen := final.(*browseModel).chosen
	if chosen == "" {
		return nil
	}

	k, err := selectKey(browseKey)
	if err != nil {
		return err
	}
	return startChat(cmd.Context(), viewstate.ChatLocation(chosen), k)
}

// =============================================================================
// LIST ITEMS
// =============================================================================

// chatItem adapts a chat to list.Item.
type chatItem struct {
	chat   model.Chat
	folder string
}

func (i chatItem) Title() string { return i.chat.Title }

func (i chatItem) Description() string {
	parts := []string{
		fmt.Sprintf("%d messages", len(i.chat.Messages)),
		formatDate(i.chat.UpdatedAt),
	}
	if i.folder != "" {
		parts = append(parts, "["+i.folder+"]")
	}
	for _, t := range i.chat.Tags {
		parts = append(parts, "#"+t)
	}
	return strings.Join(parts, " · ")
}

// FilterValue matches on title, tags and folder.
func (i chatItem) FilterValue() string {
	return strings.Join(append([]string{i.chat.Title, i.folder}, i.chat.Tags...), " ")
}

// =============================================================================
// KEYS
// =============================================================================

type browseKeyMap struct {
	Open    key.Binding
	Toggle  key.Binding
	Archive key.Binding
	Delete  key.Binding
}

func defaultBrowseKeys() browseKeyMap {
	return browseKeyMap{
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "active/archived"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive/restore"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x x", "delete"),
		),
	}
}

// =============================================================================
// MODEL
// =============================================================================

// browseModel is the bubbletea model behind `chatflow browse`.
type browseModel struct {
	store    *storage.Store
	list     list.Model
	keys     browseKeyMap
	archived bool

	// chosen is the chat to open after the program exits
	chosen string

	// pendingDelete is armed by the first x press
	pendingDelete string
}

func newBrowseModel(s *storage.Store) *browseModel {
	keys := defaultBrowseKeys()

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(colorCyan).
		BorderLeftForeground(colorCyan)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(colorMuted).
		BorderLeftForeground(colorCyan)

	l := list.New(nil, delegate, DefaultTerminalWidth, 24)
	l.Styles.Title = l.Styles.Title.Background(colorPurple)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Open, keys.Toggle, keys.Archive, keys.Delete}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	m := &browseModel{store: s, list: l, keys: keys}
	m.reload()
	return m
}

// reload refreshes the items from the store.
func (m *browseModel) reload() tea.Cmd {
	cl := m.store.GetChatList()
	chats := cl.Chats
	m.list.Title = "Chats"
	if m.archived {
		chats = cl.ArchivedChats
		m.list.Title = "Archived chats"
	}

	items := make([]list.Item, len(chats))
	for i, c := range chats {
		items[i] = chatItem{chat: c, folder: folderName(cl, c.FolderID)}
	}
	return m.list.SetItems(items)
}

// selected returns the highlighted chat id, or "".
func (m *browseModel) selected() string {
	if item, ok := m.list.SelectedItem().(chatItem); ok {
		return item.chat.ID
	}
	return ""
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// Keys belong to the filter input while it is open
		if m.list.FilterState() == list.Filtering {
			break
		}

		armed := m.pendingDelete
		m.pendingDelete = ""

		switch {
		case key.Matches(msg, m.keys.Open):
			if id := m.selected(); id != "" {
				m.chosen = id
				return m, tea.Quit
			}
			return m, nil

		case key.Matches(msg, m.keys.Toggle):
			m.archived = !m.archived
			m.list.ResetSelected()
			return m, m.reload()

		case key.Matches(msg, m.keys.Archive):
			return m, m.toggleArchive()

		case key.Matches(msg, m.keys.Delete):
			id := m.selected()
			if id == "" {
				return m, nil
			}
			if armed != id {
				m.pendingDelete = id
				return m, m.list.NewStatusMessage(WarningStyle.Render("Press x again to delete"))
			}
			if err := m.store.DeleteChat(id); err != nil {
				return m, m.list.NewStatusMessage(ErrorStyle.Render(err.Error()))
			}
			return m, tea.Batch(m.reload(), m.list.NewStatusMessage("Deleted"))
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// toggleArchive archives the selected active chat or restores the selected
// archived one.
func (m *browseModel) toggleArchive() tea.Cmd {
	id := m.selected()
	if id == "" {
		return nil
	}
	var err error
	status := "Archived"
	if m.archived {
		err = m.store.UnarchiveChat(id)
		status = "Restored"
	} else {
		err = m.store.ArchiveChat(id)
	}
	if err != nil {
		return m.list.NewStatusMessage(ErrorStyle.Render(err.Error()))
	}
	return tea.Batch(m.reload(), m.list.NewStatusMessage(status))
}

func (m *browseModel) View() string {
	return m.list.View()
}
