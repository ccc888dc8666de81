package daemon

import (
	"net"
	"os"
	"testing"
	"time"
)

func TestIsDaemonized(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", false},
	}
	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv(daemonEnvVar, tt.value)
			if got := IsDaemonized(); got != tt.want {
				t.Errorf("IsDaemonized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaemonize_AlreadyDaemonized(t *testing.T) {
	t.Setenv(daemonEnvVar, "1")

	shouldExit, pid, err := Daemonize(shortSocketPath(t))
	if err != nil {
		t.Fatalf("Daemonize failed: %v", err)
	}
	if shouldExit || pid != os.Getpid() {
		t.Errorf("shouldExit=%v pid=%d, want false and %d", shouldExit, pid, os.Getpid())
	}
}

func TestWaitForSocketReady(t *testing.T) {
	t.Run("listening", func(t *testing.T) {
		sockPath := shortSocketPath(t)
		listener, err := net.Listen("unix", sockPath)
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer func() { _ = listener.Close() }()

		if err := waitForSocketReady(sockPath, time.Second); err != nil {
			t.Errorf("waitForSocketReady: %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		if err := waitForSocketReady(shortSocketPath(t), 200*time.Millisecond); err == nil {
			t.Error("expected timeout")
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("returned after %v, before the timeout", elapsed)
		}
	})
}
