package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)

	logger.Debug("hidden")
	logger.Info("User matched", "user_id", "u1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "User matched" || record["user_id"] != "u1" {
		t.Errorf("record = %v", record)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, FormatText)

	logger.Info("hidden")
	logger.Warn("Group skipped", "group_id", "g1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "Group skipped") || !strings.Contains(out, "group_id=g1") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colors written to a non-terminal: %q", out)
	}
}

func TestNewTextToRegularFileHasNoColor(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "server.log"))
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	defer f.Close()

	if isTerminal(f) {
		t.Fatal("regular file reported as a terminal")
	}

	New(f, slog.LevelInfo, FormatText).Info("Group created", "group_id", "g1")

	out, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if bytes.Contains(out, []byte("\x1b[")) {
		t.Errorf("log file contains ANSI escapes: %q", out)
	}
	if !bytes.Contains(out, []byte("group_id=g1")) {
		t.Errorf("log file = %q", out)
	}
}
