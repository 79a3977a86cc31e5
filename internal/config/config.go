// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/otrans/internal/util"
)

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete otrans configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Ollama server connection
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Translation defaults
	Translate TranslateConfig `toml:"translate" json:"translate"`

	// Where dictionaries and history live
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Log output
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// OllamaConfig contains the inference server settings.
type OllamaConfig struct {
	// URL of the Ollama server
	URL string `toml:"url" json:"url"`
	// Model preselected on startup; empty means "first model the server lists"
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds model discovery and health checks. Streams are
	// bounded only by cancellation.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// TranslateConfig contains translation defaults.
type TranslateConfig struct {
	// Pair is the active language pair, e.g. "ko-en"
	Pair string `toml:"pair" json:"pair"`
	// ShowStats prints token usage after CLI translations
	ShowStats bool `toml:"show_stats" json:"show_stats"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// DataDir holds dictionary.json and history.db (empty = config dir)
	DataDir string `toml:"data_dir" json:"data_dir"`
	// HistoryLimit caps stored history items (0 = unlimited)
	HistoryLimit int `toml:"history_limit" json:"history_limit"`
	// WatchDictionary reloads the dictionary when another process edits it
	WatchDictionary bool `toml:"watch_dictionary" json:"watch_dictionary"`
}

// LogConfig contains zerolog settings.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is "console" or "json"
	Format string `toml:"format" json:"format"`
	// File receives log output (empty = <data dir>/otrans.log, "-" = stderr)
	File string `toml:"file" json:"file"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders history entries through glamour when on a TTY
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowUsage shows token counts in the status bar
	ShowUsage bool `toml:"show_usage" json:"show_usage"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			TimeoutSecs: 30,
		},
		Translate: TranslateConfig{
			Pair: "ko-en",
		},
		Storage: StorageConfig{
			HistoryLimit:    500,
			WatchDictionary: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme:     "auto",
			Markdown:  true,
			ShowUsage: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the otrans configuration directory path.
// OTRANS_HOME overrides the default ~/.otrans.
func ConfigDir() (string, error) {
	if dir := os.Getenv("OTRANS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".otrans"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory holding persisted state.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir), nil
	}
	return ConfigDir()
}

// DictionaryPath returns the dictionary file path.
func (c *Config) DictionaryPath() (string, error) {
	return c.dataFile("dictionary.json")
}

// HistoryPath returns the history database path.
func (c *Config) HistoryPath() (string, error) {
	return c.dataFile("history.db")
}

// ReplHistoryPath returns the line-editor history file path.
func (c *Config) ReplHistoryPath() (string, error) {
	return c.dataFile("repl_history")
}

// LogPath returns the log file path, or "" when logging to stderr.
func (c *Config) LogPath() (string, error) {
	switch c.Log.File {
	case "-":
		return "", nil
	case "":
		return c.dataFile("otrans.log")
	default:
		return expandHome(c.Log.File), nil
	}
}

func (c *Config) dataFile(name string) (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// Tries TOML first, then JSON, and falls back to defaults. Environment
// overrides are applied last in every case.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension (.json, anything else is TOML).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with a header comment.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# otrans configuration file\n")
	buf.WriteString("# Generated by otrans - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// SECURITY: owner read/write only
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host:port", c.Ollama.URL),
		})
	}

	if c.Ollama.TimeoutSecs < 1 || c.Ollama.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "ollama.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Ollama.TimeoutSecs),
		})
	}

	if src, dst, ok := strings.Cut(c.Translate.Pair, "-"); !ok || src == "" || dst == "" || src == dst {
		errs = append(errs, ValidationError{
			Field:   "translate.pair",
			Message: fmt.Sprintf("invalid pair '%s', expected <source>-<target> such as ko-en", c.Translate.Pair),
		})
	}

	if c.Storage.HistoryLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.history_limit",
			Message: "must not be negative",
		})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}

	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: console, json", c.Log.Format),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty fields that would otherwise fail validation.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	c.Ollama.URL = strings.TrimRight(c.Ollama.URL, "/")
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if c.Translate.Pair == "" {
		c.Translate.Pair = d.Translate.Pair
	}
	c.Translate.Pair = strings.ToLower(strings.TrimSpace(c.Translate.Pair))
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies OTRANS_* environment variables.
//
//	OTRANS_OLLAMA_URL   ollama.url
//	OTRANS_MODEL        ollama.model
//	OTRANS_PAIR         translate.pair
//	OTRANS_DATA_DIR     storage.data_dir
//	OTRANS_LOG_LEVEL    log.level
//	OTRANS_LOG_FILE     log.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OTRANS_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	} else if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.URL = normalizeOllamaHost(v)
	}
	if v := os.Getenv("OTRANS_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("OTRANS_PAIR"); v != "" {
		c.Translate.Pair = v
	}
	if v := os.Getenv("OTRANS_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("OTRANS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OTRANS_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// normalizeOllamaHost accepts the forms the ollama CLI accepts for
// OLLAMA_HOST ("0.0.0.0", "host:port", "http://host:port").
func normalizeOllamaHost(host string) string {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return host
	}
	if u.Port() == "" {
		u.Host += ":11434"
	}
	return u.String()
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.url").
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

// lookup resolves a dotted toml key to a struct field.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return name
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

// GetAllKeys returns all configuration keys in dot notation, sorted.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + tomlName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
