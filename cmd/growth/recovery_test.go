package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npratt/growth/internal/events"
)

func testState(routineID string, day int) events.State {
	return events.State{
		Version:   events.CurrentStateVersion,
		Status:    events.DayInProgress,
		RoutineID: routineID,
		Day:       day,
		History: map[string]*events.MethodHistory{
			"warmup":    {ID: "warmup", Status: events.MethodCompleted, DurationMs: 120000},
			"breathing": {ID: "breathing", Status: events.MethodSkipped, DurationMs: 5000},
			"stretch":   {ID: "stretch", Status: events.MethodStarted},
		},
		UpdatedAt: time.Now(),
	}
}

func TestRecordsForDay_Matching(t *testing.T) {
	records := recordsForDay(testState("starter", 1), "starter", 1)

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	warmup := records["warmup"]
	if !warmup.Completed || warmup.Duration != 2*time.Minute {
		t.Errorf("warmup = %+v, want completed with 2m", warmup)
	}

	breathing := records["breathing"]
	if !breathing.Skipped || breathing.Duration != 0 {
		t.Errorf("breathing = %+v, want skipped with zero duration", breathing)
	}

	stretch := records["stretch"]
	if !stretch.Started || stretch.Completed {
		t.Errorf("stretch = %+v, want started only", stretch)
	}
}

func TestRecordsForDay_OtherDayIgnored(t *testing.T) {
	tests := []struct {
		name      string
		routineID string
		day       int
	}{
		{"different day", "starter", 2},
		{"different routine", "other", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if records := recordsForDay(testState("starter", 1), tt.routineID, tt.day); records != nil {
				t.Errorf("expected no records, got %v", records)
			}
		})
	}
}

func TestRecoverRecords_MissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")

	if records := recoverRecords(path, "starter", 1, logger); records != nil {
		t.Errorf("expected nil records for missing state, got %v", records)
	}
}

func TestRecoverRecords_FromFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")

	data, err := json.Marshal(testState("starter", 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	records := recoverRecords(path, "starter", 1, logger)
	if !records["warmup"].Completed {
		t.Errorf("expected warmup completed, got %+v", records["warmup"])
	}
}

func TestRecoverRecords_CorruptFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if records := recoverRecords(path, "starter", 1, logger); records != nil {
		t.Errorf("expected corrupt state to be ignored, got %v", records)
	}
}
