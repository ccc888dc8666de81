// Package intent carries timer actions taken outside the process, such as a
// home-screen widget's pause, resume and stop buttons. Producers drop an
// action file; the watcher applies it to the running engine.
package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/growth/internal/arbiter"
)

// Kind is what the action asks the timer to do.
type Kind string

// Action kinds.
const (
	KindPause  Kind = "pause"
	KindResume Kind = "resume"
	KindStop   Kind = "stop"
)

// Timer names which run an action targets.
const (
	TimerMain  = "main"
	TimerQuick = "quick"
)

// Action is one out-of-process timer action.
type Action struct {
	Kind  Kind      `json:"action"`
	Timer string    `json:"timer,omitempty"`
	At    time.Time `json:"at"`
}

// Validate rejects unknown kinds and targets.
func (a Action) Validate() error {
	switch a.Kind {
	case KindPause, KindResume, KindStop:
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
	switch a.Timer {
	case "", TimerMain, TimerQuick:
	default:
		return fmt.Errorf("unknown timer %q", a.Timer)
	}
	if a.At.IsZero() {
		return fmt.Errorf("action has no timestamp")
	}
	return nil
}

// Client maps the action's target onto an arbitration client. An empty
// result targets whichever run is live.
func (a Action) Client() string {
	switch a.Timer {
	case TimerMain:
		return arbiter.ClientMain
	case TimerQuick:
		return arbiter.ClientQuickPractice
	}
	return ""
}

// Stale reports whether the action is too old to apply at now.
func (a Action) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(a.At) > maxAge
}

// ReadAction parses the action file at path.
func ReadAction(path string) (Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Action{}, err
	}
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("parse action file: %w", err)
	}
	return a, a.Validate()
}

// WriteAction publishes a for the watcher. The file is replaced atomically so
// the watcher never reads a partial action.
func WriteAction(path string, a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create action directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write action file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename action file: %w", err)
	}
	return nil
}
