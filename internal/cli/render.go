// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatflow/internal/model"
	"github.com/jeranaias/chatflow/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer renders assistant replies for the terminal. A nil renderer
// means plain text.
type markdownRenderer struct {
	r *glamour.TermRenderer
}

// newMarkdownRenderer builds a renderer for theme ("dark", "light" or
// "auto"). Rendering is disabled when enabled is false or stdout is not a
// terminal, so piped output stays raw.
func newMarkdownRenderer(theme string, enabled bool, width int) *markdownRenderer {
	if !enabled || !IsStdoutTTY() {
		return &markdownRenderer{}
	}
	style := glamour.WithStandardStyle(theme)
	if theme == "" || theme == "auto" {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		logger.Debug("markdown renderer unavailable", "error", err)
		return &markdownRenderer{}
	}
	return &markdownRenderer{r: r}
}

// Render returns content rendered for display, or content unchanged when
// rendering is off or fails.
func (m *markdownRenderer) Render(content string) string {
	if m == nil || m.r == nil {
		return content
	}
	out, err := m.r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// MESSAGES
// =============================================================================

// messageHeader renders "[n] You · 15:04" with the model and rating for
// assistant messages.
func messageHeader(n int, msg model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ", DimStyle.Render(fmt.Sprintf("[%d]", n)))
	if msg.IsUser() {
		b.WriteString(userLabelStyle.Render(msg.Role.DisplayName()))
	} else {
		b.WriteString(assistantLabelStyle.Render(msg.Role.DisplayName()))
	}
	b.WriteString(DimStyle.Render(" · " + formatClock(msg.Timestamp)))
	if msg.IsAssistant() && msg.Model != "" {
		b.WriteString(" " + modelTagStyle.Render(msg.Model))
	}
	switch msg.Feedback {
	case model.FeedbackLike:
		b.WriteString(" " + likeStyle.Render("▲ liked"))
	case model.FeedbackDislike:
		b.WriteString(" " + dislikeStyle.Render("▼ disliked"))
	}
	return b.String()
}

// printMessages writes the conversation with 1-based message numbers.
func printMessages(w io.Writer, msgs []model.Message, md *markdownRenderer) {
	for i, msg := range msgs {
		fmt.Fprintln(w, messageHeader(i+1, msg))
		content := msg.Content
		if msg.IsAssistant() {
			content = md.Render(content)
		}
		fmt.Fprintln(w, content)
		fmt.Fprintln(w)
	}
}

// =============================================================================
// CHAT TABLES
// =============================================================================

// chatRow is one line of a chat listing.
type chatRow struct {
	Chat     model.Chat
	Current  bool
	Archived bool
	Folder   string
}

// printChatTable writes chats as aligned columns fitted to width.
func printChatTable(w io.Writer, rows []chatRow, width int) {
	const (
		idW      = 8
		msgsW    = 5
		updatedW = 16
		gaps     = 5
	)
	rest := width - 2 - idW - msgsW - updatedW - gaps
	if rest < 20 {
		rest = 20
	}
	titleW := rest * 2 / 3
	metaW := rest - titleW

	fmt.Fprintf(w, "  %s %s %s %s %s\n",
		DimStyle.Render(fitCell("ID", idW)),
		DimStyle.Render(fitCell("TITLE", titleW)),
		DimStyle.Render(fitCell("MSGS", msgsW)),
		DimStyle.Render(fitCell("UPDATED", updatedW)),
		DimStyle.Render(fitCell("FOLDER/TAGS", metaW)))

	for _, row := range rows {
		marker := "  "
		if row.Current {
			marker = SuccessStyle.Render("* ")
		}
		title := fitCell(row.Chat.Title, titleW)
		if row.Archived {
			title = DimStyle.Render(title)
		}
		fmt.Fprintf(w, "%s%s %s %s %s %s\n",
			marker,
			InfoStyle.Render(fitCell(shortID(row.Chat.ID), idW)),
			title,
			fitCell(fmt.Sprintf("%d", len(row.Chat.Messages)), msgsW),
			DimStyle.Render(fitCell(formatDate(row.Chat.UpdatedAt), updatedW)),
			fitCell(chatMeta(row), metaW))
	}
}

func chatMeta(row chatRow) string {
	var parts []string
	if row.Folder != "" {
		parts = append(parts, "["+row.Folder+"]")
	}
	for _, t := range row.Chat.Tags {
		parts = append(parts, "#"+t)
	}
	if row.Archived {
		parts = append(parts, "(archived)")
	}
	return strings.Join(parts, " ")
}

// buildRows turns a chat list into table rows, active chats first.
func buildRows(list model.ChatList, includeActive, includeArchived bool) []chatRow {
	folders := make(map[string]string, len(list.Folders))
	for _, f := range list.Folders {
		folders[f.ID] = f.Name
	}

	var rows []chatRow
	if includeActive {
		for _, c := range list.Chats {
			rows = append(rows, chatRow{Chat: c, Current: c.ID == list.CurrentChatID, Folder: folders[c.FolderID]})
		}
	}
	if includeArchived {
		for _, c := range list.ArchivedChats {
			rows = append(rows, chatRow{Chat: c, Archived: true, Folder: folders[c.FolderID]})
		}
	}
	return rows
}

// =============================================================================
// FORMATTING
// =============================================================================

// shortID returns the first eight characters of an id.
func shortID(id string) string {
	return util.PrefixRunes(id, 8)
}

func formatDate(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func formatClock(ms int64) string {
	return time.UnixMilli(ms).Local().Format("15:04")
}
