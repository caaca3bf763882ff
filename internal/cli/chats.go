// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/model"
)

var (
	chatsArchived bool
	chatsAll      bool
	chatsSearch   string
	chatsFolder   string
	chatsTag      string

	showRaw bool
)

var chatsCmd = &cobra.Command{
	Use:     "chats",
	Aliases: []string{"ls", "list"},
	Short:   "List saved chats",
	Long: `List saved chats, most recently updated first.

The current chat is marked with *. IDs may be abbreviated to any unique
prefix in every command that takes a chat.

Examples:
  chatflow chats
  chatflow chats --archived
  chatflow chats --search "goroutine"
  chatflow chats --folder Work --tag go`,
	Args: cobra.NoArgs,
	RunE: runChats,
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var renameCmd = &cobra.Command{
	Use:   "rename ID TITLE",
	Short: "Rename a chat",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRename,
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Archive a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive ID",
	Short: "Restore an archived chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnarchive,
}

var deleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a chat permanently",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	chatsCmd.Flags().BoolVarP(&chatsArchived, "archived", "a", false, "list archived chats instead")
	chatsCmd.Flags().BoolVar(&chatsAll, "all", false, "list active and archived chats")
	chatsCmd.Flags().StringVarP(&chatsSearch, "search", "s", "", "filter by title or message text")
	chatsCmd.Flags().StringVarP(&chatsFolder, "folder", "f", "", "only chats in this folder")
	chatsCmd.Flags().StringVarP(&chatsTag, "tag", "t", "", "only chats with this tag")

	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print message text without markdown rendering")
}

func runChats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	list := s.GetChatList()

	includeActive := !chatsArchived || chatsAll
	includeArchived := chatsArchived || chatsAll

	if chatsSearch != "" {
		matches := s.SearchChats(chatsSearch, includeArchived)
		list = filterList(list, func(c model.Chat) bool {
			for _, m := range matches {
				if m.ID == c.ID {
					return true
				}
			}
			return false
		})
	}
	if chatsFolder != "" {
		folderID, err := resolveFolderID(list, chatsFolder)
		if err != nil {
			return err
		}
		list = filterList(list, func(c model.Chat) bool { return c.FolderID == folderID })
	}
	if chatsTag != "" {
		list = filterList(list, func(c model.Chat) bool { return c.HasTag(chatsTag) })
	}

	rows := buildRows(list, includeActive, includeArchived)
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No chats found.")
		return nil
	}
	printChatTable(out, rows, GetTerminalWidth())
	return nil
}

// filterList keeps the chats for which keep returns true.
func filterList(list model.ChatList, keep func(model.Chat) bool) model.ChatList {
	filter := func(chats []model.Chat) []model.Chat {
		out := []model.Chat{}
		for _, c := range chats {
			if keep(c) {
				out = append(out, c)
			}
		}
		return out
	}
	list.Chats = filter(list.Chats)
	list.ArchivedChats = filter(list.ArchivedChats)
	return list
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	list := s.GetChatList()
	id, err := resolveChatID(list, args[0])
	if err != nil {
		return err
	}
	chat, err := s.GetChatByID(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render(chat.Title))
	fmt.Fprintln(out, RenderField("ID", chat.ID))
	fmt.Fprintln(out, RenderField("Model", chat.CurrentModel))
	fmt.Fprintln(out, RenderField("Created", formatDate(chat.CreatedAt)))
	fmt.Fprintln(out, RenderField("Updated", formatDate(chat.UpdatedAt)))
	if name := folderName(list, chat.FolderID); name != "" {
		fmt.Fprintln(out, RenderField("Folder", name))
	}
	if len(chat.Tags) > 0 {
		fmt.Fprintln(out, RenderField("Tags", strings.Join(chat.Tags, ", ")))
	}
	if list.IndexArchived(chat.ID) >= 0 {
		fmt.Fprintln(out, RenderField("Status", "archived"))
	}
	fmt.Fprintln(out, RenderSeparator(GetTerminalWidth()-2))

	md := newMarkdownRenderer(cfg.UI.Theme, cfg.UI.Markdown && !showRaw, GetTerminalWidth()-4)
	printMessages(out, chat.Messages, md)
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return fmt.Errorf("title must not be empty")
		}
		if err := store.RenameChat(id, title); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %q\n", RenderStatus("ok"), shortID(id), title)
		return nil
	})
}

func runArchive(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		if err := store.ArchiveChat(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Archived %s\n", RenderStatus("ok"), shortID(id))
		return nil
	})
}

func runUnarchive(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		if err := store.UnarchiveChat(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Restored %s\n", RenderStatus("ok"), shortID(id))
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		if err := store.DeleteChat(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", RenderStatus("ok"), shortID(id))
		return nil
	})
}

// withChat opens the store, resolves arg to a chat id and calls fn.
func withChat(arg string, fn func(id string) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	id, err := resolveChatID(s.GetChatList(), arg)
	if err != nil {
		return err
	}
	return fn(id)
}
