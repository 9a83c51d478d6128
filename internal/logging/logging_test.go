package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgefit/forge/internal/config"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := Level(tt.in); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(config.LogConfig{Level: "debug", Format: "json"}, &buf))
	log.Debug("parsed set", "reps", 5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "parsed set" {
		t.Errorf("msg = %v, want parsed set", entry["msg"])
	}
}

func TestNewHandlerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(config.LogConfig{Level: "warn"}, &buf))
	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("info line written at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn line missing: %q", buf.String())
	}
}

func TestWriterRotatingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{Level: "info", File: filepath.Join(dir, "forge")}
	log := New(cfg)
	log.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "forge.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q, want it to contain hello", data)
	}
}
