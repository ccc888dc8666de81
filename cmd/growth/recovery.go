package main

import (
	"log/slog"

	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/session"
)

// recoverRecords seeds the day's progression from the crash recovery state
// file. State recorded for another routine or day is ignored.
func recoverRecords(path, routineID string, day int, logger *slog.Logger) map[string]session.Record {
	state, err := events.LoadState(path)
	if err != nil {
		logger.Warn("ignoring unreadable state file", "path", path, "error", err)
		return nil
	}
	return recordsForDay(state, routineID, day)
}

// recordsForDay converts matching state history into progression records.
func recordsForDay(state events.State, routineID string, day int) map[string]session.Record {
	if !state.Matches(routineID, day) || len(state.History) == 0 {
		return nil
	}
	return session.RecordsFromHistory(state.History)
}
