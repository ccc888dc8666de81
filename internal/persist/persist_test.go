package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleRecord() Record {
	total := 60.0
	return Record{
		Client:      "main",
		Owner:       "m1",
		OwnerName:   "Breathing",
		Mode:        "countdown",
		StartedAt:   t0,
		Accumulated: 10,
		Total:       &total,
		RunID:       "run-1",
		SavedAt:     t0.Add(5 * time.Second),
	}
}

func TestRecordElapsed(t *testing.T) {
	tests := []struct {
		name   string
		paused bool
		now    time.Time
		want   time.Duration
	}{
		{"running adds wall clock delta", false, t0.Add(30 * time.Second), 40 * time.Second},
		{"paused ignores wall clock", true, t0.Add(time.Hour), 10 * time.Second},
		{"clock behind start keeps banked time", false, t0.Add(-time.Minute), 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			rec.Paused = tt.paused
			if got := rec.Elapsed(tt.now); got != tt.want {
				t.Errorf("Elapsed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordTotalDuration(t *testing.T) {
	rec := sampleRecord()
	if d, ok := rec.TotalDuration(); !ok || d != time.Minute {
		t.Errorf("TotalDuration = %v, %v; want 1m, true", d, ok)
	}
	rec.Total = nil
	if _, ok := rec.TotalDuration(); ok {
		t.Error("stopwatch record should have no total")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "timer.json")
	store := NewFileStore(path, nil)

	if rec, err := store.Load(); err != nil || rec != nil {
		t.Fatalf("Load on missing file = %v, %v; want nil, nil", rec, err)
	}

	if err := store.Save(sampleRecord()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := store.Load()
	if err != nil || rec == nil {
		t.Fatalf("Load = %v, %v", rec, err)
	}
	if rec.Owner != "m1" || rec.Client != "main" || rec.Version != CurrentVersion {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %v, want %v", rec.StartedAt, t0)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestFileStoreFormatIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.json")
	store := NewFileStore(path, nil)
	if err := store.Save(sampleRecord()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		"version", "client", "owner_method_id", "mode",
		"start_wall_clock_time", "accumulated_elapsed_seconds",
		"total_duration_seconds", "paused", "saved_at",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in persisted record", key)
		}
	}
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timer.json")
	store := NewFileStore(path, nil)

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
	if err := store.Save(sampleRecord()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear #%d: %v", i+1, err)
		}
		if rec, _ := store.Load(); rec != nil {
			t.Fatalf("record survived Clear #%d", i+1)
		}
	}
}

func TestFileStoreDiscardsUnreadableRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"corrupt json", "{"},
		{"old version", `{"version":0,"owner_method_id":"m1"}`},
		{"missing owner", `{"version":1,"mode":"countdown"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "timer.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			store := NewFileStore(path, nil)
			rec, err := store.Load()
			if err != nil || rec != nil {
				t.Fatalf("Load = %v, %v; want nil, nil", rec, err)
			}
			if _, err := os.Stat(path + ".backup"); err != nil {
				t.Errorf("expected backup: %v", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("unreadable record should be moved aside")
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if rec, _ := store.Load(); rec != nil {
		t.Fatal("new store should be empty")
	}

	rec := sampleRecord()
	rec.Intervals = []IntervalRecord{{Name: "work", Seconds: 30}}
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}
	rec.Intervals[0].Name = "mutated"

	got, _ := store.Load()
	if got == nil || got.Intervals[0].Name != "work" {
		t.Errorf("store shares interval slice with caller: %+v", got)
	}
	if got.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", got.Version, CurrentVersion)
	}

	_ = store.Clear()
	_ = store.Clear()
	if rec, _ := store.Load(); rec != nil {
		t.Error("record survived Clear")
	}
	if store.Saves() != 1 || store.Clears() != 2 {
		t.Errorf("Saves/Clears = %d/%d, want 1/2", store.Saves(), store.Clears())
	}
}
