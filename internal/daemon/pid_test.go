package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPIDFile(t *testing.T) {
	t.Run("write and read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "growth.pid")
		pf := NewPIDFile(path)
		if pf.Path() != path {
			t.Errorf("Path() = %q", pf.Path())
		}

		if err := pf.Write(); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		defer func() { _ = pf.Remove() }()

		if pid := pf.Read(); pid != os.Getpid() {
			t.Errorf("Read() = %d, want %d", pid, os.Getpid())
		}
		if !pf.IsRunning() {
			t.Error("IsRunning should be true for this process")
		}
	})

	t.Run("second writer is locked out", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "growth.pid")
		first := NewPIDFile(path)
		if err := first.Write(); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		defer func() { _ = first.Remove() }()

		err := NewPIDFile(path).Write()
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("second Write: err = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "growth.pid")
		pf := NewPIDFile(path)
		if err := pf.Write(); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := pf.Remove(); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("pid file should be gone")
		}
		if err := pf.Remove(); err != nil {
			t.Errorf("second Remove: %v", err)
		}
	})

	t.Run("read invalid content", func(t *testing.T) {
		dir := t.TempDir()
		for name, content := range map[string]string{
			"missing": "",
			"garbage": "not-a-pid\n",
		} {
			path := filepath.Join(dir, name)
			if content != "" {
				if err := os.WriteFile(path, []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if pid := NewPIDFile(path).Read(); pid != 0 {
				t.Errorf("%s: Read() = %d, want 0", name, pid)
			}
		}
	})
}

func TestIsProcessRunning(t *testing.T) {
	tests := []struct {
		name string
		pid  int
		want bool
	}{
		{"current process", os.Getpid(), true},
		{"zero", 0, false},
		{"negative", -1, false},
		{"nonexistent", 999999999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProcessRunning(tt.pid); got != tt.want {
				t.Errorf("IsProcessRunning(%d) = %v, want %v", tt.pid, got, tt.want)
			}
		})
	}
}

func TestPIDFile_CleanupStale(t *testing.T) {
	t.Run("dead process", func(t *testing.T) {
		dir := t.TempDir()
		pidPath := filepath.Join(dir, "growth.pid")
		sockPath := filepath.Join(dir, "growth.sock")
		if err := os.WriteFile(pidPath, []byte("999999999\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(sockPath, nil, 0600); err != nil {
			t.Fatal(err)
		}

		NewPIDFile(pidPath).CleanupStale(sockPath)

		for _, p := range []string{pidPath, sockPath} {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("%s should be removed", p)
			}
		}
	})

	t.Run("live process", func(t *testing.T) {
		dir := t.TempDir()
		pidPath := filepath.Join(dir, "growth.pid")
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			t.Fatal(err)
		}

		NewPIDFile(pidPath).CleanupStale("")

		if _, err := os.Stat(pidPath); err != nil {
			t.Error("pid file of a live process should be kept")
		}
	})
}
