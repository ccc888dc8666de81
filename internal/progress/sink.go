package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/resolver"
)

// Sink logs completions published on the event router into the practice log.
type Sink struct {
	db     *DB
	logger *slog.Logger
	done   chan struct{}

	mu        sync.Mutex
	routineID string
	day       int
	// latest maps a method ID to its most recent logged completion, so a
	// partial prompt answer corrects the right row.
	latest   map[string]string
	recorded int
}

// NewSink creates a Sink writing to db.
func NewSink(db *DB, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		db:     db,
		logger: logger,
		done:   make(chan struct{}),
		latest: make(map[string]string),
	}
}

// Start begins processing events until ctx is canceled or the channel closes.
func (s *Sink) Start(ctx context.Context, ch <-chan events.Event) error {
	go s.run(ctx, ch)
	return nil
}

// Stop waits for the sink to drain.
func (s *Sink) Stop() error {
	<-s.done
	return nil
}

// Recorded returns how many rows the sink has written.
func (s *Sink) Recorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

func (s *Sink) run(ctx context.Context, ch <-chan events.Event) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.handle(event)
		}
	}
}

func (s *Sink) handle(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch e := event.(type) {
	case *events.SessionLoadedEvent:
		s.routineID = e.RoutineID
		s.day = e.Day
		clear(s.latest)

	case *events.MethodCompletedEvent:
		c := Completion{
			MethodID:    e.MethodID,
			MethodName:  e.MethodName,
			Client:      e.Client,
			Duration:    time.Duration(e.DurationMs) * time.Millisecond,
			Source:      e.Trigger,
			CompletedAt: e.Timestamp(),
			RoutineID:   e.RoutineID,
			Day:         e.Day,
		}
		err = s.recordLocked(c)

	case *events.MethodSkippedEvent:
		err = s.recordLocked(Completion{
			RoutineID:   s.routineID,
			Day:         e.Day,
			MethodID:    e.MethodID,
			Client:      arbiter.ClientMain,
			Skipped:     true,
			CompletedAt: e.Timestamp(),
		})

	case *events.PromptResolvedEvent:
		if e.Choice != resolver.ChoicePartial {
			return
		}
		id, ok := s.latest[e.MethodID]
		if !ok {
			s.logger.Debug("partial duration for unlogged method", "method", e.MethodID)
			return
		}
		err = s.db.UpdateDuration(id, time.Duration(e.DurationMs)*time.Millisecond)

	case *events.SessionCompletedEvent:
		err = s.db.MarkDayCompleted(DayCompletion{
			RoutineID:     e.RoutineID,
			Day:           e.Day,
			MethodCount:   e.MethodCount,
			TotalDuration: time.Duration(e.TotalDurationMs) * time.Millisecond,
			CompletedAt:   e.Timestamp(),
		})

	case *events.SessionResetEvent:
		err = s.db.ClearDayCompleted(s.routineID, e.Day)
	}

	if err != nil {
		s.logger.Error("progress log write failed", "type", event.Type(), "error", err)
	}
}

func (s *Sink) recordLocked(c Completion) error {
	id, err := s.db.RecordCompletion(c)
	if err != nil {
		return err
	}
	s.latest[c.MethodID] = id
	s.recorded++
	return nil
}
