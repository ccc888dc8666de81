package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/npratt/growth/internal/config"
)

// debugLogName is the TUI-mode log file, kept next to the event log.
const debugLogName = "growth-debug.log"

// sessionLog is the rotating JSON log used while the TUI owns the terminal.
// Every record carries the routine and day being practiced.
type sessionLog struct {
	*slog.Logger
	Path   string
	writer *lumberjack.Logger
}

// Close flushes and closes the log file.
func (l *sessionLog) Close() error {
	return l.writer.Close()
}

// openSessionLog opens dir/growth-debug.log. A log left by an earlier session
// is rotated out first so each session starts its own file; older files are
// pruned according to rotation.
func openSessionLog(dir string, level slog.Leveler, rotation config.LogRotationConfig, routineID string, day int) (*sessionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, debugLogName)

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		if err := writer.Rotate(); err != nil {
			return nil, fmt.Errorf("rotate %s: %w", path, err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})).With(
		"routine", routineID,
		"day", day,
		"pid", os.Getpid(),
	)
	return &sessionLog{Logger: logger, Path: path, writer: writer}, nil
}
