package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/events"
)

func TestPrintLines(t *testing.T) {
	ch := make(chan events.Event, 4)
	ch <- &events.MethodStartedEvent{BaseEvent: base(events.EventMethodStarted), MethodID: "m1", MethodName: "Breathing"}
	ch <- &events.PromptRequestedEvent{BaseEvent: base(events.EventPromptRequested), MethodID: "m1", DurationMs: 60000, Deferred: true}
	ch <- &events.PromptRequestedEvent{BaseEvent: base(events.EventPromptRequested), MethodID: "m1", DurationMs: 60000}
	close(ch)

	tu := New(ch, &fakeController{status: runningStatus()})
	var buf bytes.Buffer
	if err := tu.printLines(&buf, nil, nil); err != nil {
		t.Fatalf("printLines: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "started Breathing") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if strings.Contains(lines[1], "growth prompt") || !strings.Contains(lines[1], "[deferred]") {
		t.Errorf("deferred prompt should not print the hint: %q", lines[1])
	}
	if lines[3] != promptHint {
		t.Errorf("line 3 = %q, want the prompt hint", lines[3])
	}
}

func TestPrintLines_ClockAndInterrupt(t *testing.T) {
	ch := make(chan events.Event)
	stop := make(chan os.Signal, 1)
	clock := make(chan time.Time)

	quit := false
	tu := New(ch, &fakeController{status: runningStatus()}, WithOnQuit(func() { quit = true }))

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- tu.printLines(&buf, stop, clock) }()

	clock <- time.Now()
	stop <- os.Interrupt
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("printLines: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printLines did not return after interrupt")
	}

	if !quit {
		t.Error("onQuit should run on interrupt")
	}
	if !strings.Contains(buf.String(), "Breathing 00:45") {
		t.Errorf("output = %q, want the running clock", buf.String())
	}
}

func TestClockLine_IdleTimer(t *testing.T) {
	st := runningStatus()
	st.Timer = controller.TimerStatus{State: "stopped"}
	tu := New(nil, &fakeController{status: st})
	if line := tu.clockLine(); line != "" {
		t.Errorf("clockLine() = %q, want empty while stopped", line)
	}
}
