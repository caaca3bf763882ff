// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jeranaias/chatflow/internal/cloud"
)

const (
	// MaxAPIKeys is the number of numbered key slots read from the environment.
	MaxAPIKeys = 10

	// MaxModels is the number of numbered allow-list slots.
	MaxModels = 20

	minKeyLen = 10
)

// envPrefixes are tried in order for every variable.
var envPrefixes = []string{"VITE_", "CHATFLOW_"}

// APIKey is a named upstream credential.
type APIKey struct {
	Name string
	Key  string
}

// String identifies the key without revealing it.
func (k APIKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, cloud.KeyFingerprint(k.Key))
}

// Credentials holds the configured keys and the model allow-list.
type Credentials struct {
	Keys   []APIKey
	Models []string
}

// ErrNoKeys is returned when no usable API key is configured.
var ErrNoKeys = errors.New("no API keys configured: set VITE_API_KEY_1_NAME and VITE_API_KEY_1 in the environment or .env")

// LoadDotEnv loads variables from the given .env files, or ".env" when none
// are given. Missing files are ignored; existing variables are not
// overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadCredentials reads API_KEY_<i>_NAME / API_KEY_<i> pairs (i = 1..10) and
// MODEL_<i> allow-list entries (i = 1..20) using getenv. Placeholder keys,
// keys starting with "YOUR_" and keys of 10 characters or fewer are skipped.
func LoadCredentials(getenv func(string) string) Credentials {
	var creds Credentials

	for i := 1; i <= MaxAPIKeys; i++ {
		name := strings.TrimSpace(lookupEnv(getenv, fmt.Sprintf("API_KEY_%d_NAME", i)))
		key := strings.TrimSpace(lookupEnv(getenv, fmt.Sprintf("API_KEY_%d", i)))
		if name == "" || !usableKey(key) {
			continue
		}
		creds.Keys = append(creds.Keys, APIKey{Name: name, Key: key})
	}

	for i := 1; i <= MaxModels; i++ {
		if id := strings.TrimSpace(lookupEnv(getenv, fmt.Sprintf("MODEL_%d", i))); id != "" {
			creds.Models = append(creds.Models, id)
		}
	}
	return creds
}

// Key returns the key called name, or the first key when name is empty.
func (c Credentials) Key(name string) (APIKey, error) {
	if len(c.Keys) == 0 {
		return APIKey{}, ErrNoKeys
	}
	if name == "" {
		return c.Keys[0], nil
	}
	for _, k := range c.Keys {
		if strings.EqualFold(k.Name, name) {
			return k, nil
		}
	}
	return APIKey{}, fmt.Errorf("no API key named %q", name)
}

// Names returns the configured key names in order.
func (c Credentials) Names() []string {
	names := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		names[i] = k.Name
	}
	return names
}

func lookupEnv(getenv func(string) string, suffix string) string {
	for _, prefix := range envPrefixes {
		if v := getenv(prefix + suffix); v != "" {
			return v
		}
	}
	return ""
}

func usableKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "YOUR_") && len(key) > minKeyLen
}
