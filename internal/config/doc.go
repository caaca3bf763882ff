// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatflow.
//
// # Key Types
//
//   - Config: settings persisted in ~/.chatflow/config.toml
//   - Credentials: named API keys and the model allow-list, read from the
//     environment (and a .env file) only
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CHATFLOW_*)
//   - ~/.chatflow/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	creds := config.LoadCredentials(os.Getenv)
package config
