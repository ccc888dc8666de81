package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npratt/growth/internal/config"
)

func testRotation() config.LogRotationConfig {
	rot := config.Default().LogRotation
	rot.Compress = false
	return rot
}

func TestOpenSessionLog_WritesSessionAttrs(t *testing.T) {
	dir := t.TempDir()

	log, err := openSessionLog(dir, slog.LevelInfo, testRotation(), "thirty-day", 4)
	if err != nil {
		t.Fatalf("openSessionLog failed: %v", err)
	}
	if want := filepath.Join(dir, debugLogName); log.Path != want {
		t.Errorf("Path = %q, want %q", log.Path, want)
	}
	log.Info("method started", "method", "m1")
	_ = log.Close()

	content, err := os.ReadFile(log.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, content)
	}
	if rec["msg"] != "method started" || rec["method"] != "m1" {
		t.Errorf("record = %v", rec)
	}
	if rec["routine"] != "thirty-day" || rec["day"] != float64(4) {
		t.Errorf("session attrs missing: %v", rec)
	}
	if _, ok := rec["pid"]; !ok {
		t.Error("pid attr missing")
	}
}

func TestOpenSessionLog_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".growth")

	log, err := openSessionLog(dir, slog.LevelInfo, testRotation(), "r", 1)
	if err != nil {
		t.Fatalf("openSessionLog failed: %v", err)
	}
	defer func() { _ = log.Close() }()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected log directory to exist: %v", err)
	}
}

func TestOpenSessionLog_RotatesPreviousSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, debugLogName)
	if err := os.WriteFile(path, []byte("previous session\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	log, err := openSessionLog(dir, slog.LevelInfo, testRotation(), "r", 1)
	if err != nil {
		t.Fatalf("openSessionLog failed: %v", err)
	}
	log.Info("new session")
	_ = log.Close()

	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "previous session") {
		t.Error("the new session should start its own file")
	}
	if !strings.Contains(string(content), "new session") {
		t.Error("missing the new session's record")
	}

	backups, _ := filepath.Glob(filepath.Join(dir, "growth-debug-*.log"))
	if len(backups) != 1 {
		t.Fatalf("backups = %v, want the previous session kept", backups)
	}
	old, _ := os.ReadFile(backups[0])
	if string(old) != "previous session\n" {
		t.Errorf("backup = %q", old)
	}
}

func TestOpenSessionLog_RespectsLevel(t *testing.T) {
	dir := t.TempDir()

	log, err := openSessionLog(dir, slog.LevelWarn, testRotation(), "r", 1)
	if err != nil {
		t.Fatalf("openSessionLog failed: %v", err)
	}
	log.Info("info message")
	log.Warn("warn message")
	_ = log.Close()

	content, _ := os.ReadFile(log.Path)
	if strings.Contains(string(content), "info message") {
		t.Error("INFO message should be filtered out at WARN level")
	}
	if !strings.Contains(string(content), "warn message") {
		t.Error("WARN message should appear")
	}
}
