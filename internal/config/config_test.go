package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !strings.HasSuffix(cfg.Storage.DataDir, ".inword") {
		t.Errorf("expected data dir under ~/.inword, got '%s'", cfg.Storage.DataDir)
	}

	if cfg.Extractor.Endpoint != "http://127.0.0.1:8087" {
		t.Errorf("expected extractor endpoint 'http://127.0.0.1:8087', got '%s'", cfg.Extractor.Endpoint)
	}

	if cfg.Extractor.TimeoutSec != 60 {
		t.Errorf("expected extraction timeout 60s, got %d", cfg.Extractor.TimeoutSec)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	if cfg.User.ID != "" {
		t.Errorf("expected no signed-in user by default, got '%s'", cfg.User.ID)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	// Create a temporary directory for testing
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".inword", "config.yaml")

	// Load config (should create default)
	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify config was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Verify config values
	if cfg.Extractor.Endpoint != "http://127.0.0.1:8087" {
		t.Errorf("expected default endpoint, got '%s'", cfg.Extractor.Endpoint)
	}

	// Load again to test reading existing file
	cfg2, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load existing config: %v", err)
	}

	if cfg2.Extractor.Endpoint != cfg.Extractor.Endpoint {
		t.Error("config values changed on reload")
	}
}

func TestSaveToPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".inword", "config.yaml")

	cfg := Default()
	cfg.User.ID = "user-123"
	cfg.Logging.Level = "debug"

	// Save config
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	// Load saved config
	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}

	// Verify saved values
	if loaded.User.ID != "user-123" {
		t.Errorf("expected user 'user-123', got '%s'", loaded.User.ID)
	}

	if loaded.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", loaded.Logging.Level)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &Config{
		Storage: StorageConfig{
			DataDir: filepath.Join(tempDir, ".inword"),
		},
		Logging: LoggingConfig{
			File: filepath.Join(tempDir, ".inword", "logs", "inword.log"),
		},
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to ensure directories: %v", err)
	}

	// Check that directories were created
	dirs := []string{
		filepath.Join(tempDir, ".inword"),
		filepath.Join(tempDir, ".inword", "logs"),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory '%s' was not created", dir)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:   StorageConfig{DataDir: "/tmp/inword"},
			Extractor: ExtractorConfig{Endpoint: "http://127.0.0.1:8087", TimeoutSec: 60, UpdateTimeoutSec: 120},
			Logging:   LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Storage.DataDir = "" },
			wantErr: true,
		},
		{
			name:    "empty extractor endpoint",
			mutate:  func(c *Config) { c.Extractor.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "negative extraction timeout",
			mutate:  func(c *Config) { c.Extractor.TimeoutSec = -1 },
			wantErr: true,
		},
		{
			name:    "negative update timeout",
			mutate:  func(c *Config) { c.Extractor.UpdateTimeoutSec = -5 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: true,
		},
		{
			name:    "empty user id is allowed",
			mutate:  func(c *Config) { c.User.ID = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "path with tilde",
			input:    "~/.inword/config.yaml",
			expected: filepath.Join(homeDir, ".inword", "config.yaml"),
		},
		{
			name:     "absolute path",
			input:    "/usr/local/share/inword",
			expected: "/usr/local/share/inword",
		},
		{
			name:     "relative path",
			input:    "./config.yaml",
			expected: "./config.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if result != tt.expected {
				t.Errorf("expandPath(%s) = %s, expected %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestConfigSerialization(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	// Create a config with specific values
	original := Default()
	original.Storage.DataDir = filepath.Join(tempDir, "data")
	original.Extractor.Endpoint = "https://api.inword.app"
	original.Extractor.APIKey = "test-key-123"
	original.Extractor.TimeoutSec = 30
	original.Extractor.UpdateTimeoutSec = 90
	original.Logging.Level = "warn"
	original.User.ID = "user-abc"

	// Save config
	if err := original.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	// Load config
	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify all values
	if loaded.Storage.DataDir != original.Storage.DataDir {
		t.Errorf("data dir mismatch: got %s, want %s", loaded.Storage.DataDir, original.Storage.DataDir)
	}

	if loaded.Extractor.Endpoint != "https://api.inword.app" {
		t.Errorf("endpoint mismatch: got %s, want https://api.inword.app", loaded.Extractor.Endpoint)
	}

	if loaded.Extractor.APIKey != "test-key-123" {
		t.Errorf("API key mismatch: got %s, want test-key-123", loaded.Extractor.APIKey)
	}

	if loaded.Extractor.TimeoutSec != 30 {
		t.Errorf("timeout mismatch: got %d, want 30", loaded.Extractor.TimeoutSec)
	}

	if loaded.Extractor.UpdateTimeoutSec != 90 {
		t.Errorf("update timeout mismatch: got %d, want 90", loaded.Extractor.UpdateTimeoutSec)
	}

	if loaded.Logging.Level != "warn" {
		t.Errorf("log level mismatch: got %s, want warn", loaded.Logging.Level)
	}

	if loaded.User.ID != "user-abc" {
		t.Errorf("user mismatch: got %s, want user-abc", loaded.User.ID)
	}
}

func TestToClientConfig(t *testing.T) {
	ec := ExtractorConfig{
		Endpoint:   "http://127.0.0.1:9000",
		APIKey:     "secret",
		TimeoutSec: 45,
	}

	cc := ec.ToClientConfig()

	if cc.Endpoint != "http://127.0.0.1:9000" {
		t.Errorf("endpoint mismatch: got %s", cc.Endpoint)
	}
	if cc.APIKey != "secret" {
		t.Errorf("api key mismatch: got %s", cc.APIKey)
	}
	if cc.Timeout != 45*time.Second {
		t.Errorf("timeout mismatch: got %v, want 45s", cc.Timeout)
	}

	// Zero timeout passes through so the client can fill its default
	if zero := (ExtractorConfig{}).ToClientConfig(); zero.Timeout != 0 {
		t.Errorf("expected zero timeout to pass through, got %v", zero.Timeout)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	// Note: This test demonstrates the pattern but may need adjustment
	// based on how Viper handles nested environment variables in your setup

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	// Create default config
	cfg := Default()
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	// Set environment variable
	os.Setenv("INWORD_LOGGING_LEVEL", "debug")
	defer os.Unsetenv("INWORD_LOGGING_LEVEL")

	// Load config (should pick up env var)
	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Note: Viper's AutomaticEnv() may have limitations with nested structs
	// This test documents expected behavior
	t.Logf("Log level from config: %s", loaded.Logging.Level)
}
