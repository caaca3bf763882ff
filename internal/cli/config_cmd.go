// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit configuration",
	Long: `Show or edit the configuration file (~/.chatflow/config.toml).

Subcommands:
  show          Print the effective configuration (default)
  path          Print the config file path
  init          Write a default config file
  get KEY       Print one setting
  set KEY VALUE Change one setting and save

Keys use dot notation, for example ui.theme or storage.backend.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:       "get KEY",
	Short:     "Print one setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting and save",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chatflow %s\n", Version)
		fmt.Fprintf(out, "  commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		fmt.Fprintf(out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// activeConfigPath returns --config or the default path.
func activeConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, _ := activeConfigPath()

	fmt.Fprintln(out, TitleStyle.Render("chatflow configuration"))
	fmt.Fprintln(out, DimStyle.Render(path))
	printSettings(out, cfg)

	fmt.Fprintln(out, SectionStyle.Render("[keys]"))
	if len(creds.Keys) == 0 {
		fmt.Fprintf(out, "  %s\n", WarningStyle.Render("none configured"))
	}
	for _, k := range creds.Keys {
		fmt.Fprintf(out, "  %s%s\n", LabelStyle.Render(k.Name), DimStyle.Render(cloud.KeyFingerprint(k.Key)))
	}
	if len(creds.Models) > 0 {
		fmt.Fprintln(out, SectionStyle.Render("[allow-list]"))
		for _, m := range creds.Models {
			fmt.Fprintf(out, "  %s\n", m)
		}
	}
	return nil
}

// printSettings writes every key grouped by its section.
func printSettings(w io.Writer, c *config.Config) {
	section := ""
	for _, key := range config.Keys() {
		name := key
		if i := strings.IndexByte(key, '.'); i >= 0 {
			if s := key[:i]; s != section {
				section = s
				fmt.Fprintln(w, SectionStyle.Render("["+section+"]"))
			}
			name = key[i+1:]
		}
		v, err := c.Get(key)
		if err != nil {
			continue
		}
		indent := "  "
		if section == "" {
			indent = ""
		}
		fmt.Fprintf(w, "%s%s%v\n", indent, LabelStyle.Width(24).Render(name), v)
	}
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := activeConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := activeConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", RenderStatus("ok"), path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	v, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

// runConfigSet edits the file on disk rather than the effective config, so
// environment and flag overrides are not written back.
func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := activeConfigPath()
	if err != nil {
		return err
	}

	onDisk := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if onDisk, err = config.ReadFile(path); err != nil {
			return err
		}
	}
	if err := onDisk.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := onDisk.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(onDisk, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderStatus("ok"), args[0], args[1])
	return nil
}
