// Package config handles configuration loading and validation for vidmeta.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"vidmeta/internal/naming"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidFormat   ConfigErrorType = "INVALID_FORMAT"
	InvalidEnv      ConfigErrorType = "INVALID_ENV"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidFormat:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case InvalidEnv:
		return fmt.Sprintf("invalid environment override: %s", e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Existing output policies.
const (
	PolicyOverwrite = "overwrite"
	PolicyRename    = "rename"
)

// Default file names looked up in the working directory.
const (
	DefaultTOMLFile = "config.toml"
	DefaultJSONFile = "config.json"
	DefaultEnvFile  = ".env"
)

// DefaultWriterAttribute is the extended attribute holding the writer names.
const DefaultWriterAttribute = "user.xdg.creator"

// FileNaming controls output filenames.
type FileNaming struct {
	UUIDMaxLength  int    `toml:"uuid_max_length" json:"uuid_max_length" env:"VIDMETA_UUID_MAX_LENGTH"`
	Prefix         string `toml:"prefix" json:"prefix" env:"VIDMETA_PREFIX"`
	Separator      string `toml:"separator" json:"separator" env:"VIDMETA_SEPARATOR"`
	Extension      string `toml:"extension" json:"extension" env:"VIDMETA_EXTENSION"`
	ExistingPolicy string `toml:"existing_policy" json:"existing_policy" env:"VIDMETA_EXISTING_POLICY"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level" env:"VIDMETA_LOG_LEVEL"`
	Format string `toml:"format" json:"format" env:"VIDMETA_LOG_FORMAT"`
	File   string `toml:"file" json:"file" env:"VIDMETA_LOG_FILE"`
}

// AuditConfig controls the run log.
type AuditConfig struct {
	LogDirectory string `toml:"log_directory" json:"log_directory" env:"VIDMETA_AUDIT_DIR"`
	Enabled      bool   `toml:"enabled" json:"enabled" env:"VIDMETA_AUDIT_ENABLED"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceSeconds   int      `toml:"debounce_seconds" json:"debounce_seconds" env:"VIDMETA_DEBOUNCE_SECONDS"`
	StableThresholdMs int      `toml:"stable_threshold_ms" json:"stable_threshold_ms" env:"VIDMETA_STABLE_THRESHOLD_MS"`
	IgnorePatterns    []string `toml:"ignore_patterns" json:"ignore_patterns" env:"VIDMETA_IGNORE_PATTERNS"`
}

// Configuration holds all settings for vidmeta.
type Configuration struct {
	FFmpegPath        string      `toml:"ffmpeg_path" json:"ffmpeg_path" env:"VIDMETA_FFMPEG_PATH"`
	CommonFFmpegPaths []string    `toml:"common_ffmpeg_paths" json:"common_ffmpeg_paths" env:"VIDMETA_COMMON_FFMPEG_PATHS"`
	DefaultInputDir   string      `toml:"default_input_dir" json:"default_input_dir" env:"VIDMETA_INPUT_DIR"`
	DefaultOutputDir  string      `toml:"default_output_dir" json:"default_output_dir" env:"VIDMETA_OUTPUT_DIR"`
	WriterNames       []string    `toml:"writer_names" json:"writer_names" env:"VIDMETA_WRITER_NAMES"`
	WriterAttribute   string      `toml:"writer_attribute" json:"writer_attribute" env:"VIDMETA_WRITER_ATTRIBUTE"`
	Recursive         bool        `toml:"recursive" json:"recursive" env:"VIDMETA_RECURSIVE"`
	SymlinkPolicy     string      `toml:"symlink_policy" json:"symlink_policy" env:"VIDMETA_SYMLINK_POLICY"`
	FileNaming        FileNaming  `toml:"file_naming" json:"file_naming"`
	Log               LogConfig   `toml:"log" json:"log"`
	Audit             AuditConfig `toml:"audit" json:"audit"`
	Watch             WatchConfig `toml:"watch" json:"watch"`
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		CommonFFmpegPaths: []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"C:\\ffmpeg\\bin\\ffmpeg.exe",
		},
		DefaultInputDir:  "input",
		DefaultOutputDir: "output",
		WriterNames:      []string{"Izumi.Qu", "Grok"},
		WriterAttribute:  DefaultWriterAttribute,
		SymlinkPolicy:    "skip",
		FileNaming: FileNaming{
			Prefix:         naming.DefaultPrefix,
			Separator:      naming.DefaultSeparator,
			Extension:      naming.DefaultExtension,
			ExistingPolicy: PolicyOverwrite,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Audit: AuditConfig{
			LogDirectory: ".vidmeta/audit",
			Enabled:      true,
		},
		Watch: WatchConfig{
			DebounceSeconds:   2,
			StableThresholdMs: 1000,
			IgnorePatterns:    []string{".*", "*.part", "*.crdownload", "*.tmp"},
		},
	}
}

// NamingOptions returns the naming settings as naming.Options.
func (c *Configuration) NamingOptions() naming.Options {
	return naming.Options{
		Prefix:        c.FileNaming.Prefix,
		Separator:     c.FileNaming.Separator,
		Extension:     c.FileNaming.Extension,
		UUIDMaxLength: c.FileNaming.UUIDMaxLength,
	}
}

// Debounce returns the watch debounce duration.
func (c *Configuration) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceSeconds) * time.Second
}

// StableThreshold returns the watch stability threshold.
func (c *Configuration) StableThreshold() time.Duration {
	return time.Duration(c.Watch.StableThresholdMs) * time.Millisecond
}

// Load reads the configuration at filePath on top of the defaults, then applies
// environment overrides. An empty filePath looks for config.toml and then
// config.json in the working directory; when neither exists the defaults are used.
func Load(filePath string) (*Configuration, error) {
	cfg := Default()

	if filePath == "" {
		filePath = findDefaultFile()
	}
	if filePath != "" {
		if err := decodeFile(filePath, cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, DefaultEnvFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads envFile (when present) into the process environment without
// overriding variables already set, then applies VIDMETA_* overrides to cfg.
func ApplyEnv(cfg *Configuration, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &ConfigError{Type: InvalidEnv, Path: envFile, Message: err.Error(), Err: err}
		}
	}
	if err := env.Parse(cfg); err != nil {
		return &ConfigError{Type: InvalidEnv, Message: err.Error(), Err: err}
	}
	return nil
}

func findDefaultFile() string {
	for _, name := range []string{DefaultTOMLFile, DefaultJSONFile} {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

func decodeFile(filePath string, cfg *Configuration) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return &ConfigError{Type: FileNotFound, Path: filePath, Message: err.Error(), Err: err}
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return &ConfigError{Type: InvalidFormat, Path: filePath, Message: err.Error(), Err: err}
	}
	return nil
}

// Save writes cfg to filePath as TOML or JSON, chosen by extension.
func Save(cfg *Configuration, filePath string) error {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return &ConfigError{Type: InvalidFormat, Path: filePath, Message: err.Error(), Err: err}
		}
		buf.Write(data)
		buf.WriteByte('\n')
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return &ConfigError{Type: InvalidFormat, Path: filePath, Message: err.Error(), Err: err}
	}

	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return &ConfigError{
			Type:    ValidationError,
			Path:    filePath,
			Message: fmt.Sprintf("failed to write configuration file: %s", err.Error()),
			Err:     err,
		}
	}
	return nil
}
