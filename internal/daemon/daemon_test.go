package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/persist"
	"github.com/npratt/growth/internal/schedule"
	"github.com/npratt/growth/internal/timer"
)

// shortSocketPath returns a socket path short enough for the Unix socket
// length limit (104 bytes on macOS, 108 on Linux).
func shortSocketPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "sock")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	_ = f.Close()
	_ = os.Remove(path)
	t.Cleanup(func() { _ = os.Remove(path) })
	return path
}

func waitForSocket(t *testing.T, socketPath string) {
	t.Helper()
	if err := waitForSocketReady(socketPath, 2*time.Second); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	clock  *clock.Fake
	ctrl   *controller.Controller
	daemon *Daemon
	client *Client
	cancel context.CancelFunc
	errCh  chan error
}

func startFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.Socket = shortSocketPath(t)
	cfg.Session.AutoProgression = false

	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	router := events.NewRouter(events.DefaultBufferSize)
	ctrl := controller.New(cfg, controller.Deps{
		Engine: timer.New(clk, persist.NewMemoryStore(), router, nil),
		Router: router,
		Clock:  clk,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		_ = ctrl.Run(ctx)
	}()

	routine := schedule.Routine{ID: "r1", Days: []schedule.Day{{
		Number: 1,
		Methods: []schedule.Method{
			{ID: "m1", Name: "Warmup", DefaultDuration: time.Minute},
			{ID: "m2", Name: "Main set", DefaultDuration: 2 * time.Minute},
		},
	}}}
	if err := ctrl.LoadDay(routine, 1, nil); err != nil {
		t.Fatalf("LoadDay failed: %v", err)
	}

	d := New(cfg, ctrl, nil)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	waitForSocket(t, cfg.Paths.Socket)

	f := &fixture{
		clock:  clk,
		ctrl:   ctrl,
		daemon: d,
		client: NewClient(cfg.Paths.Socket),
		cancel: cancel,
		errCh:  errCh,
	}
	t.Cleanup(func() {
		cancel()
		<-ctrlDone
		router.Close()
	})
	return f
}

func TestDaemon_StartStop(t *testing.T) {
	f := startFixture(t)

	if !f.daemon.Running() {
		t.Error("daemon should be running after Start")
	}
	if f.daemon.StartTime().IsZero() {
		t.Error("start time should be set")
	}
	info, err := os.Stat(f.daemon.SocketPath())
	if err != nil {
		t.Fatalf("socket missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != socketPermissions {
		t.Errorf("socket permissions = %o, want %o", perm, socketPermissions)
	}

	if err := f.daemon.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	f.cancel()
	select {
	case err := <-f.errCh:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if f.daemon.Running() {
		t.Error("daemon should not be running after Stop")
	}
	if _, err := os.Stat(f.daemon.SocketPath()); !os.IsNotExist(err) {
		t.Error("socket should be removed on stop")
	}
	if err := f.daemon.Stop(); err != nil {
		t.Errorf("repeated Stop: %v", err)
	}
}

func TestDaemon_TimerCommands(t *testing.T) {
	f := startFixture(t)

	if err := f.client.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.clock.Advance(20 * time.Second)

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	engine := status.Engine
	if engine.Timer.Owner != "m1" || engine.Timer.State != string(timer.StateRunning) {
		t.Errorf("timer = %+v, want m1 running", engine.Timer)
	}
	if engine.Timer.ElapsedMs != 20000 || engine.Timer.Remaining() != 40*time.Second {
		t.Errorf("elapsed %dms remaining %v", engine.Timer.ElapsedMs, engine.Timer.Remaining())
	}
	if engine.Holder != arbiter.ClientMain || status.PID != os.Getpid() {
		t.Errorf("holder %q pid %d", engine.Holder, status.PID)
	}

	if err := f.client.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := f.client.Pause(); err == nil {
		t.Error("pausing a paused timer should fail")
	}
	if err := f.client.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	_, err = f.client.Quick("Breathing", time.Minute)
	if err == nil || !strings.Contains(err.Error(), arbiter.ErrArbitrationDenied.Error()) {
		t.Errorf("Quick while main runs: err = %v", err)
	}

	if err := f.client.Stop(""); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	status, err = f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Engine.Timer.State != string(timer.StateStopped) || status.Engine.Holder != "" {
		t.Errorf("after stop: %+v holder %q", status.Engine.Timer, status.Engine.Holder)
	}

	owner, err := f.client.Quick("Breathing", time.Minute)
	if err != nil {
		t.Fatalf("Quick failed: %v", err)
	}
	if !strings.HasPrefix(owner, controller.QuickOwnerPrefix) {
		t.Errorf("owner = %q", owner)
	}
}

func TestDaemon_SessionCommands(t *testing.T) {
	f := startFixture(t)

	if err := f.client.Skip(); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if err := f.client.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if err := f.client.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Engine.Index != 1 || status.Engine.Methods[0].Status != events.MethodSkipped {
		t.Errorf("index %d methods %+v", status.Engine.Index, status.Engine.Methods)
	}

	if err := f.client.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := f.client.SetAutoProgression(true); err != nil {
		t.Fatalf("SetAutoProgression failed: %v", err)
	}
	status, err = f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Engine.Index != 0 || !status.Engine.AutoProgression {
		t.Errorf("index %d auto %v, want 0 and true", status.Engine.Index, status.Engine.AutoProgression)
	}
}

func TestDaemon_PromptFlow(t *testing.T) {
	f := startFixture(t)

	if err := f.client.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.client.Background(); err != nil {
		t.Fatalf("Background failed: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	if err := f.client.Foreground(); err != nil {
		t.Fatalf("Foreground failed: %v", err)
	}

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Engine.PromptOpen || status.Engine.PromptOwner != "m1" {
		t.Fatalf("prompt open=%v owner=%q", status.Engine.PromptOpen, status.Engine.PromptOwner)
	}

	if err := f.client.Prompt("maybe", 0); err == nil {
		t.Error("unknown choice should fail")
	}
	if err := f.client.Prompt("partial", 45*time.Second); err != nil {
		t.Fatalf("Prompt failed: %v", err)
	}
	status, err = f.client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Engine.Methods[0].DurationMs != 45000 || status.Engine.Index != 1 {
		t.Errorf("m1 %+v index %d", status.Engine.Methods[0], status.Engine.Index)
	}
}

func TestDaemon_Shutdown(t *testing.T) {
	f := startFixture(t)

	called := make(chan struct{})
	f.daemon.OnShutdown(func() { close(called) })
	if err := f.client.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook not called")
	}
}

func TestDaemon_ProtocolErrors(t *testing.T) {
	f := startFixture(t)

	send := func(payload string) Response {
		t.Helper()
		conn, err := net.Dial("unix", f.daemon.SocketPath())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer func() { _ = conn.Close() }()
		if _, err := conn.Write([]byte(payload + "\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		var resp Response
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"unknown method", `{"method":"rewind","id":7}`, "unknown method: rewind"},
		{"invalid json", `{not json`, "decode error"},
		{"bad params", `{"method":"quick","params":{"duration_ms":"soon"}}`, "invalid params for quick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(tt.payload)
			if !strings.Contains(resp.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", resp.Error, tt.want)
			}
		})
	}
}

func TestDaemon_NoController(t *testing.T) {
	cfg := config.Default()
	d := New(cfg, nil, nil)
	resp, after := d.handleRequest(&Request{Method: MethodStatus})
	if resp.Error != "no controller available" || after != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_NotRunning(t *testing.T) {
	client := NewClient(shortSocketPath(t))
	client.SetTimeout(100 * time.Millisecond)

	if client.IsRunning() {
		t.Error("IsRunning should be false without a daemon")
	}
	_, err := client.Status()
	if err == nil || !strings.Contains(err.Error(), "daemon not running") {
		t.Errorf("err = %v, want daemon not running", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	path := shortSocketPath(t)
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	// Closing the listener leaves no one accepting on the path.
	_ = listener.Close()
	if f, err := os.Create(path); err == nil {
		_ = f.Close()
	}

	err = NewClient(path).Pause()
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("unexpected timeout: %v", err)
	}
}
