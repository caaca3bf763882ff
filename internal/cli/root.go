// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the command-line interface for chatflow.
//
// Every command shares one loaded configuration, one set of credentials from
// the environment and, for commands that touch saved chats, one open store.
// Interactive commands (chat, browse) drive a session.Controller through a
// viewstate.Synchronizer; the rest operate on the store directly.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/config"
	"github.com/jeranaias/chatflow/internal/session"
	"github.com/jeranaias/chatflow/internal/storage"
)

var (
	// Version information, set by main at start-up.
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"

	// Global flags
	configPath  string
	envFile     string
	backendFlag string
	dataDirFlag string
	logLevel    string
	logFile     string
	noColor     bool

	// Shared state, populated by PersistentPreRunE
	cfg      *config.Config
	creds    config.Credentials
	logger   *slog.Logger
	store    *storage.Store
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "Terminal chat client for OpenRouter models",
	Long: `chatflow is a chat client for the OpenRouter API.

Conversations are streamed, saved automatically and can be organized into
folders, tagged, archived and exported to Markdown, JSON or HTML.

API keys are read from the environment or a .env file:

  VITE_API_KEY_1_NAME=Primary
  VITE_API_KEY_1=sk-or-...

Up to 10 keys are supported. VITE_MODEL_1..VITE_MODEL_20 restrict the model
catalog. The CHATFLOW_ prefix is accepted in place of VITE_.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if noColor {
			ForceColorsEnabled(false)
		}
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	rootCmd.Version = Version
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		teardown()
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.chatflow/config.toml)")
	pf.StringVar(&envFile, "env", "", "dotenv file with API keys (default ./.env)")
	pf.StringVar(&backendFlag, "backend", "", "storage backend: file, sqlite, pebble, memory")
	pf.StringVar(&dataDirFlag, "data-dir", "", "storage directory")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration, credentials and the logger. The store is opened
// lazily by openStore so config commands work without a data directory.
func setup(cmd *cobra.Command) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags beat environment beats file
	if backendFlag != "" {
		cfg.Storage.Backend = backendFlag
	}
	if dataDirFlag != "" {
		cfg.Storage.Path = dataDirFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var paths []string
	if envFile != "" {
		paths = append(paths, envFile)
	}
	if err := config.LoadDotEnv(paths...); err != nil {
		return err
	}
	creds = config.LoadCredentials(os.Getenv)

	logger, closeLog = config.SetupLogger(cfg.Logging.File, cfg.LogLevel())
	slog.SetDefault(logger)
	logger.Debug("configuration loaded",
		"backend", cfg.Storage.Backend,
		"keys", len(creds.Keys),
		"allow_list", len(creds.Models))
	return nil
}

func teardown() {
	if store != nil {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
		store = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

// openStore opens the configured backend once and imports the legacy
// history record on first use.
func openStore() (*storage.Store, error) {
	if store != nil {
		return store, nil
	}
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Backend != storage.BackendMemory {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	s, err := storage.Open(cfg.Storage.Backend, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	s.WithLogger(logger)

	imported, err := s.ImportLegacy(session.DeriveTitle)
	if err != nil {
		logger.Warn("legacy history import failed", "error", err)
	} else if imported {
		logger.Info("imported legacy chat history")
	}

	store = s
	return store, nil
}

// newClient builds the upstream client from configuration.
func newClient() *cloud.OpenRouterClient {
	return cloud.NewOpenRouterClient().
		WithBaseURL(cfg.Cloud.BaseURL).
		WithSiteURL(cfg.Cloud.SiteURL).
		WithSiteName(cfg.Cloud.SiteName).
		WithLogger(logger)
}

// selectKey returns the named key, falling back to the configured default.
func selectKey(name string) (config.APIKey, error) {
	if name == "" {
		name = cfg.Cloud.DefaultKey
	}
	return creds.Key(name)
}
