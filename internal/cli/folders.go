// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/model"
)

var folderColor string

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage chat folders",
	Long: `Manage chat folders.

Subcommands:
  list      List folders with chat counts (default)
  create    Create a folder
  rename    Rename a folder or change its color
  delete    Delete a folder; its chats are kept

Folders may be named by id, id prefix or name.`,
	Args: cobra.NoArgs,
	RunE: runFoldersList,
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFoldersCreate,
}

var foldersRenameCmd = &cobra.Command{
	Use:   "rename FOLDER [NAME]",
	Short: "Rename a folder or change its color",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFoldersRename,
}

var foldersDeleteCmd = &cobra.Command{
	Use:   "delete FOLDER",
	Short: "Delete a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersDelete,
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Add or remove chat tags",
	Long: `Add or remove chat tags.

Examples:
  chatflow tag add 3f2a go
  chatflow tag rm 3f2a go
  chatflow tag list`,
}

var tagAddCmd = &cobra.Command{
	Use:   "add ID TAG",
	Short: "Tag a chat",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagAdd,
}

var tagRmCmd = &cobra.Command{
	Use:     "rm ID TAG",
	Aliases: []string{"remove"},
	Short:   "Remove a tag from a chat",
	Args:    cobra.ExactArgs(2),
	RunE:    runTagRm,
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tag in use",
	Args:  cobra.NoArgs,
	RunE:  runTagList,
}

var moveCmd = &cobra.Command{
	Use:   "move ID [FOLDER]",
	Short: "Move a chat into a folder, or out of all folders",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMove,
}

func init() {
	foldersCreateCmd.Flags().StringVar(&folderColor, "color", "", "folder color (e.g. #3B82F6)")
	foldersRenameCmd.Flags().StringVar(&folderColor, "color", "", "new folder color")

	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
	foldersCmd.AddCommand(foldersRenameCmd)
	foldersCmd.AddCommand(foldersDeleteCmd)

	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagListCmd)
}

func runFoldersList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	folders := s.ListFolders()
	if len(folders) == 0 {
		fmt.Fprintln(out, "No folders.")
		return nil
	}
	for _, f := range folders {
		count := len(s.ChatsInFolder(f.ID))
		color := ""
		if f.Color != "" {
			color = " " + DimStyle.Render(f.Color)
		}
		fmt.Fprintf(out, "%s  %s%s  %s\n",
			InfoStyle.Render(shortID(f.ID)),
			f.Name,
			color,
			DimStyle.Render(fmt.Sprintf("(%d chats)", count)))
	}
	return nil
}

func runFoldersCreate(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return fmt.Errorf("folder name must not be empty")
	}
	f, err := s.CreateFolder(name, folderColor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Created folder %q (%s)\n", RenderStatus("ok"), f.Name, shortID(f.ID))
	return nil
}

func runFoldersRename(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	id, err := resolveFolderID(s.GetChatList(), args[0])
	if err != nil {
		return err
	}

	var patch model.FolderPatch
	if name := strings.TrimSpace(strings.Join(args[1:], " ")); name != "" {
		patch.Name = &name
	}
	if cmd.Flags().Changed("color") {
		patch.Color = &folderColor
	}
	if patch.Name == nil && patch.Color == nil {
		return fmt.Errorf("nothing to change: give a new name or --color")
	}

	f, err := s.UpdateFolder(id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Folder %s is now %q\n", RenderStatus("ok"), shortID(f.ID), f.Name)
	return nil
}

func runFoldersDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	id, err := resolveFolderID(s.GetChatList(), args[0])
	if err != nil {
		return err
	}
	if err := s.DeleteFolder(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted folder %s\n", RenderStatus("ok"), shortID(id))
	return nil
}

func runTagAdd(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		if err := store.AddTagToChat(id, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Tagged %s with #%s\n", RenderStatus("ok"), shortID(id), strings.TrimSpace(args[1]))
		return nil
	})
}

func runTagRm(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		if err := store.RemoveTagFromChat(id, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed #%s from %s\n", RenderStatus("ok"), strings.TrimSpace(args[1]), shortID(id))
		return nil
	})
}

func runTagList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	tags := s.AllTags()
	if len(tags) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tags.")
		return nil
	}
	for _, t := range tags {
		fmt.Fprintln(cmd.OutOrStdout(), "#"+t)
	}
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	return withChat(args[0], func(id string) error {
		folderID := ""
		if len(args) == 2 {
			var err error
			folderID, err = resolveFolderID(store.GetChatList(), args[1])
			if err != nil {
				return err
			}
		}
		if err := store.MoveChatToFolder(id, folderID); err != nil {
			return err
		}
		if folderID == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s from its folder\n", RenderStatus("ok"), shortID(id))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Moved %s to %s\n", RenderStatus("ok"), shortID(id), folderName(store.GetChatList(), folderID))
		}
		return nil
	})
}
