package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatEventLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "not json",
			line: "plain text",
			want: "plain text",
		},
		{
			name: "timer state",
			line: `{"type":"timer.state_changed","timestamp":"2026-01-02T10:11:12Z","reason":"started","owner_name":"Warmup"}`,
			want: "[10:11:12] timer.state_changed: started Warmup",
		},
		{
			name: "method completed",
			line: `{"type":"method.completed","timestamp":"2026-01-02T10:11:12Z","method_id":"warmup","method_name":"Warmup"}`,
			want: "[10:11:12] method.completed: Warmup",
		},
		{
			name: "prompt resolved",
			line: `{"type":"prompt.resolved","timestamp":"2026-01-02T10:11:12Z","method_id":"warmup","choice":"log"}`,
			want: "[10:11:12] prompt.resolved: warmup log",
		},
		{
			name: "session loaded",
			line: `{"type":"session.loaded","timestamp":"2026-01-02T10:11:12Z","day":3}`,
			want: "[10:11:12] session.loaded: day=3",
		},
		{
			name: "error",
			line: `{"type":"error","timestamp":"2026-01-02T10:11:12Z","message":"boom"}`,
			want: "[10:11:12] error: boom",
		},
		{
			name: "no detail",
			line: `{"type":"lifecycle.background","timestamp":"2026-01-02T10:11:12Z"}`,
			want: "[10:11:12] lifecycle.background",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEventLine(tt.line); got != tt.want {
				t.Errorf("formatEventLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTailLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var lines []string
	for _, msg := range []string{"one", "two", "three"} {
		lines = append(lines, `{"type":"error","timestamp":"2026-01-02T10:11:12Z","message":"`+msg+`"}`)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := tailLast(&buf, path, 2); err != nil {
		t.Fatalf("tailLast: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "one") {
		t.Errorf("expected only the last two lines, got:\n%s", out)
	}
	if !strings.Contains(out, "two") || !strings.Contains(out, "three") {
		t.Errorf("missing last lines, got:\n%s", out)
	}
}

func TestTailLast_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := tailLast(&buf, filepath.Join(t.TempDir(), "nope.jsonl"), 5); err != nil {
		t.Fatalf("tailLast: %v", err)
	}
	if !strings.Contains(buf.String(), "No events yet") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
