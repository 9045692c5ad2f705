package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"debug lowercase", "debug", slog.LevelDebug},
		{"debug uppercase", "DEBUG", slog.LevelDebug},
		{"debug mixed", "Debug", slog.LevelDebug},
		{"info lowercase", "info", slog.LevelInfo},
		{"info uppercase", "INFO", slog.LevelInfo},
		{"warn lowercase", "warn", slog.LevelWarn},
		{"warn uppercase", "WARN", slog.LevelWarn},
		{"error lowercase", "error", slog.LevelError},
		{"error uppercase", "ERROR", slog.LevelError},
		{"empty string", "", slog.LevelInfo},
		{"invalid value", "invalid", slog.LevelInfo},
		{"trace returns info", "trace", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "maniplink.log")

	cleanup, err := Setup(path, slog.LevelDebug)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer cleanup()

	slog.Info("link established", "host", "127.0.0.1", "port", 4001)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	// JSON handler: one object per line
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "link established" {
		t.Errorf("expected msg 'link established', got %v", entry["msg"])
	}
	if entry["host"] != "127.0.0.1" {
		t.Errorf("expected host attribute, got %v", entry["host"])
	}
}

func TestSetupTest(t *testing.T) {
	var buf bytes.Buffer
	SetupTest(&buf)

	slog.Debug("probe sent")

	if !bytes.Contains(buf.Bytes(), []byte("probe sent")) {
		t.Errorf("expected debug output captured, got %q", buf.String())
	}
}

func TestLogPanic(t *testing.T) {
	var buf bytes.Buffer
	SetupTest(&buf)

	var recovered any
	func() {
		defer LogPanic("test-goroutine", func(r any) { recovered = r })
		panic("boom")
	}()

	if recovered != "boom" {
		t.Errorf("expected recovery callback with 'boom', got %v", recovered)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Errorf("expected panic log entry, got %q", buf.String())
	}
}
