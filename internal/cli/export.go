// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/export"
	"github.com/jeranaias/chatflow/internal/model"
)

var (
	exportFormat      string
	exportOut         string
	exportOpen        bool
	exportFrontmatter bool
	exportStdout      bool
)

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export a chat to Markdown, JSON or HTML",
	Long: `Export a chat to a file.

Formats:
  md     Markdown transcript
  json   the chat record plus its export date
  html   print-ready document with highlighted code (use for PDF)

The file is named after the chat title and the export time.

Examples:
  chatflow export 3f2a
  chatflow export 3f2a --format html --open
  chatflow export 3f2a --format json --stdout | jq .`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "export format: "+strings.Join(export.Formats, ", "))
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportOpen, "open", false, "open the file after exporting")
	exportCmd.Flags().BoolVar(&exportFrontmatter, "frontmatter", false, "add YAML frontmatter to Markdown")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "write to stdout instead of a file")
}

// exportOptions builds export options from configuration.
func exportOptions(outDir string) *export.Options {
	opts := export.DefaultOptions()
	opts.OutputDir = outDir
	opts.OpenAfterExport = exportOpen
	opts.Frontmatter = exportFrontmatter
	if cfg != nil && cfg.UI.CodeStyle != "" {
		opts.CodeStyle = cfg.UI.CodeStyle
	}
	return opts
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	id, err := resolveChatID(s.GetChatList(), args[0])
	if err != nil {
		return err
	}
	chat, err := s.GetChatByID(id)
	if err != nil {
		return err
	}

	opts := exportOptions(exportOut)
	exporter, err := export.ForFormat(exportFormat, opts)
	if err != nil {
		return err
	}

	if exportStdout {
		data, err := exporter.Export(chat)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	path, err := writeExport(chat, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %q to %s\n", RenderStatus("ok"), chat.Title, path)
	return nil
}

// writeExport writes chat to a file and logs the result.
func writeExport(chat model.Chat, exporter export.Exporter, opts *export.Options) (string, error) {
	path, err := export.ExportToFile(chat, exporter, opts)
	if err != nil {
		return "", err
	}
	logger.Info("chat exported", "chat", chat.ID, "format", exporter.MimeType(), "path", path)
	return path, nil
}
