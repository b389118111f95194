package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "inword.log")

	closeFn, err := Setup("debug", path)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	log.Info().Str("user_id", "u1").Msg("file sink check")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file sink check") {
		t.Errorf("log file missing message, got: %s", data)
	}
}

func TestSetupRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inword.log")

	closeFn, err := Setup("warn", path)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	log.Info().Msg("below threshold")
	log.Warn().Msg("at threshold")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "below threshold") {
		t.Error("info message should have been filtered at warn level")
	}
	if !strings.Contains(string(data), "at threshold") {
		t.Errorf("warn message missing, got: %s", data)
	}
}

func TestSetupWithoutFile(t *testing.T) {
	closeFn, err := Setup("info", "")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	// Close function must be callable even when no file was opened.
	closeFn()
}
