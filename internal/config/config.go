// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/storage"
	"github.com/jeranaias/chatflow/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatflow configuration.
type Config struct {
	Version string `toml:"version"`

	// DefaultModel is used when neither a chat nor the saved selection names one.
	DefaultModel string `toml:"default_model"`

	Cloud   CloudConfig   `toml:"cloud"`
	Storage StorageConfig `toml:"storage"`
	Session SessionConfig `toml:"session"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
}

// CloudConfig contains upstream API settings. Keys are never stored here.
type CloudConfig struct {
	BaseURL  string `toml:"base_url"`
	SiteURL  string `toml:"site_url"`
	SiteName string `toml:"site_name"`

	// DefaultKey names the credential used when none is chosen.
	DefaultKey string `toml:"default_key"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `toml:"backend"` // file, sqlite, pebble, memory
	Path    string `toml:"path"`    // directory; empty means ~/.chatflow/data
}

// SessionConfig tunes the session controller.
type SessionConfig struct {
	DebounceMS         int `toml:"debounce_ms"`
	ModelSwitchGuardMS int `toml:"model_switch_guard_ms"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	Theme     string `toml:"theme"` // dark, light, auto
	Markdown  bool   `toml:"markdown"`
	CodeStyle string `toml:"code_style"` // chroma style for exports
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Cloud: CloudConfig{
			BaseURL:  cloud.DefaultOpenRouterURL,
			SiteURL:  cloud.DefaultSiteURL,
			SiteName: cloud.DefaultSiteName,
		},
		Storage: StorageConfig{
			Backend: storage.BackendFile,
		},
		Session: SessionConfig{
			DebounceMS:         500,
			ModelSwitchGuardMS: 500,
		},
		UI: UIConfig{
			Theme:     "dark",
			Markdown:  true,
			CodeStyle: "github",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// DebounceDelay returns the save debounce as a duration.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Session.DebounceMS) * time.Millisecond
}

// ModelSwitchGuard returns the model switch guard as a duration.
func (c *Config) ModelSwitchGuard() time.Duration {
	return time.Duration(c.Session.ModelSwitchGuardMS) * time.Millisecond
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() slog.Level {
	level, _ := ParseLevel(c.Logging.Level)
	return level
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatflow configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatflow"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StorageDir resolves the storage directory, expanding a leading "~".
func (c *Config) StorageDir() (string, error) {
	path := c.Storage.Path
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "data"), nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.chatflow/config.toml, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is LoadFromPath, except that a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// ReadFile decodes path over the defaults without environment overrides or
// validation. Use it to edit the file itself.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration with a header comment. The file is
// replaced atomically and is readable by the owner only.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# chatflow configuration file")
	fmt.Fprintln(&buf, "# API keys are read from the environment or .env, never from this file.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Cloud.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "cloud.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.Cloud.BaseURL),
		})
	}

	validBackend := false
	for _, b := range storage.Backends {
		if c.Storage.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: %s", c.Storage.Backend, strings.Join(storage.Backends, ", ")),
		})
	}

	if c.Session.DebounceMS < 0 || c.Session.DebounceMS > 10000 {
		errs = append(errs, ValidationError{
			Field:   "session.debounce_ms",
			Message: fmt.Sprintf("must be between 0 and 10000, got %d", c.Session.DebounceMS),
		})
	}
	if c.Session.ModelSwitchGuardMS < 0 || c.Session.ModelSwitchGuardMS > 10000 {
		errs = append(errs, ValidationError{
			Field:   "session.model_switch_guard_ms",
			Message: fmt.Sprintf("must be between 0 and 10000, got %d", c.Session.ModelSwitchGuardMS),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields from Default.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	if c.Cloud.SiteURL == "" {
		c.Cloud.SiteURL = defaults.Cloud.SiteURL
	}
	if c.Cloud.SiteName == "" {
		c.Cloud.SiteName = defaults.Cloud.SiteName
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Session.DebounceMS == 0 {
		c.Session.DebounceMS = defaults.Session.DebounceMS
	}
	if c.Session.ModelSwitchGuardMS == 0 {
		c.Session.ModelSwitchGuardMS = defaults.Session.ModelSwitchGuardMS
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = defaults.UI.CodeStyle
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATFLOW_MODEL: overrides default_model
//   - CHATFLOW_BASE_URL: overrides cloud.base_url
//   - CHATFLOW_STORAGE_BACKEND: overrides storage.backend
//   - CHATFLOW_STORAGE_PATH: overrides storage.path
//   - CHATFLOW_LOG_LEVEL: overrides logging.level
//   - CHATFLOW_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"CHATFLOW_MODEL", &c.DefaultModel},
		{"CHATFLOW_BASE_URL", &c.Cloud.BaseURL},
		{"CHATFLOW_STORAGE_BACKEND", &c.Storage.Backend},
		{"CHATFLOW_STORAGE_PATH", &c.Storage.Path},
		{"CHATFLOW_LOG_LEVEL", &c.Logging.Level},
		{"CHATFLOW_LOG_FILE", &c.Logging.File},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	return []string{
		"version",
		"default_model",
		"cloud.base_url",
		"cloud.site_url",
		"cloud.site_name",
		"cloud.default_key",
		"storage.backend",
		"storage.path",
		"session.debounce_ms",
		"session.model_switch_guard_ms",
		"ui.theme",
		"ui.markdown",
		"ui.code_style",
		"logging.level",
		"logging.file",
	}
}
