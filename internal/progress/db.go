// Package progress is the durable practice log: every completed or skipped
// method and every finished day, kept in a local SQLite database.
package progress

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS method_completions (
		id           TEXT PRIMARY KEY,
		routine_id   TEXT NOT NULL DEFAULT '',
		day          INTEGER NOT NULL DEFAULT 0,
		method_id    TEXT NOT NULL,
		method_name  TEXT NOT NULL DEFAULT '',
		client       TEXT NOT NULL,
		duration_ms  INTEGER NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		skipped      INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_method_completions_day
		ON method_completions (routine_id, day)`,
	`CREATE TABLE IF NOT EXISTS day_completions (
		routine_id        TEXT NOT NULL,
		day               INTEGER NOT NULL,
		method_count      INTEGER NOT NULL,
		total_duration_ms INTEGER NOT NULL,
		completed_at      INTEGER NOT NULL,
		PRIMARY KEY (routine_id, day)
	)`,
}

// Completion is one logged method run.
type Completion struct {
	ID          string
	RoutineID   string
	Day         int
	MethodID    string
	MethodName  string
	Client      string
	Duration    time.Duration
	Source      string
	Skipped     bool
	CompletedAt time.Time
}

// DayCompletion marks a day whose every method was completed.
type DayCompletion struct {
	RoutineID     string
	Day           int
	MethodCount   int
	TotalDuration time.Duration
	CompletedAt   time.Time
}

// DB is the practice log database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the practice log at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening progress db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating progress schema: %w", err)
		}
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordCompletion logs c. An empty ID is assigned a new one, which is
// returned.
func (d *DB) RecordCompletion(c Completion) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO method_completions
			(id, routine_id, day, method_id, method_name, client, duration_ms, source, skipped, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RoutineID, c.Day, c.MethodID, c.MethodName, c.Client,
		c.Duration.Milliseconds(), c.Source, c.Skipped, c.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("recording completion of %s: %w", c.MethodID, err)
	}
	return c.ID, nil
}

// UpdateDuration replaces the duration of a logged completion.
func (d *DB) UpdateDuration(id string, duration time.Duration) error {
	res, err := d.db.Exec(
		`UPDATE method_completions SET duration_ms = ? WHERE id = ?`,
		duration.Milliseconds(), id,
	)
	if err != nil {
		return fmt.Errorf("updating completion %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("completion %s not found", id)
	}
	return nil
}

// MarkDayCompleted records that a day was finished. Finishing it again
// replaces the marker.
func (d *DB) MarkDayCompleted(dc DayCompletion) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO day_completions
			(routine_id, day, method_count, total_duration_ms, completed_at)
			VALUES (?, ?, ?, ?, ?)`,
		dc.RoutineID, dc.Day, dc.MethodCount, dc.TotalDuration.Milliseconds(), dc.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("marking day %d completed: %w", dc.Day, err)
	}
	return nil
}

// ClearDayCompleted removes a day's completion marker. Logged method runs are
// kept.
func (d *DB) ClearDayCompleted(routineID string, day int) error {
	_, err := d.db.Exec(
		`DELETE FROM day_completions WHERE routine_id = ? AND day = ?`,
		routineID, day,
	)
	if err != nil {
		return fmt.Errorf("clearing day %d: %w", day, err)
	}
	return nil
}

// DayCompleted returns the completion marker for a day, if any.
func (d *DB) DayCompleted(routineID string, day int) (DayCompletion, bool, error) {
	var (
		dc          DayCompletion
		totalMs     int64
		completedAt int64
	)
	err := d.db.QueryRow(
		`SELECT routine_id, day, method_count, total_duration_ms, completed_at
			FROM day_completions WHERE routine_id = ? AND day = ?`,
		routineID, day,
	).Scan(&dc.RoutineID, &dc.Day, &dc.MethodCount, &totalMs, &completedAt)
	if err == sql.ErrNoRows {
		return DayCompletion{}, false, nil
	}
	if err != nil {
		return DayCompletion{}, false, err
	}
	dc.TotalDuration = time.Duration(totalMs) * time.Millisecond
	dc.CompletedAt = time.UnixMilli(completedAt).UTC()
	return dc, true, nil
}

// Completions returns the runs logged for one day, oldest first.
func (d *DB) Completions(routineID string, day int) ([]Completion, error) {
	return d.query(
		`SELECT id, routine_id, day, method_id, method_name, client, duration_ms, source, skipped, completed_at
			FROM method_completions WHERE routine_id = ? AND day = ?
			ORDER BY completed_at, id`,
		routineID, day,
	)
}

// Recent returns the most recent logged runs across all days, newest first.
func (d *DB) Recent(limit int) ([]Completion, error) {
	if limit <= 0 {
		limit = 20
	}
	return d.query(
		`SELECT id, routine_id, day, method_id, method_name, client, duration_ms, source, skipped, completed_at
			FROM method_completions ORDER BY completed_at DESC, id LIMIT ?`,
		limit,
	)
}

func (d *DB) query(q string, args ...any) ([]Completion, error) {
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var (
			c           Completion
			durationMs  int64
			completedAt int64
		)
		if err := rows.Scan(&c.ID, &c.RoutineID, &c.Day, &c.MethodID, &c.MethodName,
			&c.Client, &durationMs, &c.Source, &c.Skipped, &completedAt); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.CompletedAt = time.UnixMilli(completedAt).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
