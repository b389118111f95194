// Package config loads and persists Inword CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lucascarsonbrown/Inword/internal/extract"
)

// Config holds all application configuration for the Inword CLI.
// It is loaded from ~/.inword/config.yaml and can be overridden by
// INWORD_-prefixed environment variables.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	User      UserConfig      `mapstructure:"user" yaml:"user"`
}

// StorageConfig locates local data on disk.
type StorageConfig struct {
	// DataDir is the directory holding the SQLite database and, when the
	// OS secure store is unavailable, the key file fallback.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// ExtractorConfig points at the fact-extraction service.
type ExtractorConfig struct {
	// Endpoint is the extraction API base URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APIKey is the bearer token for the extraction API (empty for local deployments)
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// TimeoutSec bounds each individual extraction call (default: 60)
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	// UpdateTimeoutSec bounds a whole background KB update (default: 120)
	UpdateTimeoutSec int `mapstructure:"update_timeout_sec" yaml:"update_timeout_sec"`
}

// ToClientConfig converts ExtractorConfig to the extraction client's Config.
// Zero values flow through so the client applies its own defaults.
func (c ExtractorConfig) ToClientConfig() extract.Config {
	return extract.Config{
		Endpoint: c.Endpoint,
		APIKey:   c.APIKey,
		Timeout:  time.Duration(c.TimeoutSec) * time.Second,
	}
}

// UpdateTimeout returns the background update timeout as a duration.
func (c ExtractorConfig) UpdateTimeout() time.Duration {
	return time.Duration(c.UpdateTimeoutSec) * time.Second
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file (empty disables file logging)
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// UserConfig identifies the signed-in user.
type UserConfig struct {
	// ID is the stable user identifier all local rows are scoped by.
	// Empty means no one is signed in; KB operations refuse to run.
	ID string `mapstructure:"id" yaml:"id"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	inwordDir := filepath.Join(homeDir, ".inword")

	return &Config{
		Storage: StorageConfig{
			DataDir: inwordDir,
		},
		Extractor: ExtractorConfig{
			Endpoint:         "http://127.0.0.1:8087",
			APIKey:           "",
			TimeoutSec:       60,
			UpdateTimeoutSec: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(inwordDir, "logs", "inword.log"),
		},
		User: UserConfig{
			ID: "",
		},
	}
}

// Load reads configuration from the default location (~/.inword/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".inword", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	// Expand tilde in path
	path = expandPath(path)

	// Ensure the config directory exists
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create default config
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	// Configure Viper
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Enable environment variable overrides
	// Example: INWORD_EXTRACTOR_ENDPOINT
	v.SetEnvPrefix("INWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand paths with tilde
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".inword", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	// Ensure the config directory exists
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// EnsureDirectories creates all directories Inword needs at runtime: the
// data directory and the log directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDir}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir cannot be empty")
	}

	if c.Extractor.Endpoint == "" {
		return fmt.Errorf("extractor.endpoint cannot be empty")
	}

	if c.Extractor.TimeoutSec < 0 {
		return fmt.Errorf("extractor.timeout_sec cannot be negative")
	}

	if c.Extractor.UpdateTimeoutSec < 0 {
		return fmt.Errorf("extractor.update_timeout_sec cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	// Marshal config to YAML bytes using yaml struct tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with proper permissions
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
