package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/npratt/growth/internal/config"
)

func TestResolvePaths(t *testing.T) {
	base := "/home/user/project"
	paths := config.PathsConfig{
		State:    ".growth/state.json",
		Timer:    "/var/lib/growth/timer.json",
		Log:      ".growth/events.jsonl",
		Socket:   ".growth/growth.sock",
		PID:      ".growth/growth.pid",
		Progress: ".growth/progress.db",
	}

	got, err := ResolvePaths(paths, base)
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", got.State, "/home/user/project/.growth/state.json"},
		{"timer keeps absolute", got.Timer, "/var/lib/growth/timer.json"},
		{"log", got.Log, "/home/user/project/.growth/events.jsonl"},
		{"socket", got.Socket, "/home/user/project/.growth/growth.sock"},
		{"pid", got.PID, "/home/user/project/.growth/growth.pid"},
		{"progress", got.Progress, "/home/user/project/.growth/progress.db"},
		{"empty intent stays empty", got.Intent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestResolvePaths_WorkingDirectory(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	got, err := ResolvePaths(config.PathsConfig{State: "state.json"}, "")
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if got.State != filepath.Join(wd, "state.json") {
		t.Errorf("State = %q", got.State)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tests := []struct {
		name   string
		marker string
	}{
		{"git repository", ".git"},
		{"growth state directory", ".growth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.MkdirAll(filepath.Join(root, tt.marker), 0755); err != nil {
				t.Fatal(err)
			}
			nested := filepath.Join(root, "a", "b")
			if err := os.MkdirAll(nested, 0755); err != nil {
				t.Fatal(err)
			}

			want, _ := filepath.EvalSymlinks(root)
			got, _ := filepath.EvalSymlinks(FindProjectRoot(nested))
			if got != want {
				t.Errorf("FindProjectRoot = %q, want %q", got, want)
			}
		})
	}

	t.Run("no marker returns start", func(t *testing.T) {
		dir := t.TempDir()
		abs, _ := filepath.Abs(dir)
		if got := FindProjectRoot(dir); !strings.HasPrefix(abs, got) {
			t.Errorf("FindProjectRoot = %q, want %q or an ancestor", got, abs)
		}
	})
}

func TestDaemonInfo(t *testing.T) {
	root := t.TempDir()
	path := DaemonInfoPath(root)
	if path != filepath.Join(root, ".growth", "daemon.json") {
		t.Errorf("DaemonInfoPath = %q", path)
	}

	info := &DaemonInfo{
		SocketPath: "/tmp/growth.sock",
		PIDPath:    "/tmp/growth.pid",
		LogPath:    "/tmp/events.jsonl",
		StartTime:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		PID:        4242,
	}
	if err := WriteDaemonInfo(path, info); err != nil {
		t.Fatalf("WriteDaemonInfo failed: %v", err)
	}

	got, err := ReadDaemonInfo(path)
	if err != nil {
		t.Fatalf("ReadDaemonInfo failed: %v", err)
	}
	if got.PID != 4242 || got.SocketPath != info.SocketPath || !got.StartTime.Equal(info.StartTime) {
		t.Errorf("got %+v", got)
	}

	nested := filepath.Join(root, "sub")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	found, err := FindDaemonInfo(nested)
	if err != nil {
		t.Fatalf("FindDaemonInfo failed: %v", err)
	}
	if found.PID != 4242 {
		t.Errorf("found PID = %d", found.PID)
	}

	if err := RemoveDaemonInfo(path); err != nil {
		t.Fatalf("RemoveDaemonInfo failed: %v", err)
	}
	if err := RemoveDaemonInfo(path); err != nil {
		t.Errorf("removing twice: %v", err)
	}
	if _, err := FindDaemonInfo(nested); err == nil {
		t.Error("FindDaemonInfo should fail after removal")
	}
	if _, err := ReadDaemonInfo(filepath.Join(root, "missing.json")); err == nil {
		t.Error("ReadDaemonInfo of a missing file should fail")
	}
}
